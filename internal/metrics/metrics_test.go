package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/metrics"
)

func TestRecordControl(t *testing.T) {
	before := testutil.ToFloat64(metrics.ControlOpsTotal.WithLabelValues("play", "stream_unavailable"))

	metrics.RecordControl("play", "stream_unavailable", 20*time.Millisecond)

	after := testutil.ToFloat64(metrics.ControlOpsTotal.WithLabelValues("play", "stream_unavailable"))
	if after != before+1 {
		t.Errorf("control ops = %v, want %v", after, before+1)
	}
}

func TestRecordControl_DefaultsToOK(t *testing.T) {
	before := testutil.ToFloat64(metrics.ControlOpsTotal.WithLabelValues("pause", "ok"))
	metrics.RecordControl("pause", "", time.Millisecond)
	if got := testutil.ToFloat64(metrics.ControlOpsTotal.WithLabelValues("pause", "ok")); got != before+1 {
		t.Errorf("pause ok = %v, want %v", got, before+1)
	}
}

func TestPromhttpExposure(t *testing.T) {
	metrics.RecordError("invalid_handle")
	metrics.RecordPipelineEvent("eos")

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	promhttp.Handler().ServeHTTP(recorder, req)

	body := recorder.Body.String()
	for _, name := range []string{
		"streamplayer_errors_total",
		"streamplayer_pipeline_events_total",
		"streamplayer_players_live",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in metrics output", name)
		}
	}
	if !strings.Contains(body, `kind="invalid_handle"`) {
		t.Error(`expected label kind="invalid_handle"`)
	}
}
