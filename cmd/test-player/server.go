package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	streamplayer "github.com/e7canasta/orion-care-sensor/modules/stream-player"
)

// playerInspector is the part of the engine the side server reads.
type playerInspector interface {
	Handles() []streamplayer.Handle
	Info(streamplayer.Handle) (streamplayer.Info, error)
}

func newRouter(e playerInspector) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/players", listPlayers(e))
	r.Get("/players/{handle}", getPlayer(e))
	return r
}

func listPlayers(e playerInspector) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		out := make([]streamplayer.Info, 0)
		for _, h := range e.Handles() {
			info, err := e.Info(h)
			if err != nil {
				// destroyed between Handles and Info
				continue
			}
			out = append(out, info)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getPlayer(e playerInspector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := strconv.ParseUint(chi.URLParam(r, "handle"), 0, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid handle"})
			return
		}

		info, err := e.Info(streamplayer.Handle(v))
		switch {
		case errors.Is(err, streamplayer.ErrInvalidHandle):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case err != nil:
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusOK, info)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("test-player: failed to write response", "error", err)
	}
}
