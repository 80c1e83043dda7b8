package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	streamplayer "github.com/e7canasta/orion-care-sensor/modules/stream-player"
)

type fakeInspector struct {
	players map[streamplayer.Handle]streamplayer.Info
	order   []streamplayer.Handle
}

func (f *fakeInspector) Handles() []streamplayer.Handle { return f.order }

func (f *fakeInspector) Info(h streamplayer.Handle) (streamplayer.Info, error) {
	info, ok := f.players[h]
	if !ok {
		return streamplayer.Info{}, streamplayer.ErrInvalidHandle
	}
	return info, nil
}

func newFakeInspector() *fakeInspector {
	return &fakeInspector{
		players: map[streamplayer.Handle]streamplayer.Info{
			0x100000001: {Handle: 0x100000001, URL: "rtsp://cam1/stream", State: streamplayer.StatePlaying},
			0x100000002: {Handle: 0x100000002, URL: "testsrc://ball", State: streamplayer.StatePaused},
		},
		// 0x100000003 was destroyed after Handles was read
		order: []streamplayer.Handle{0x100000001, 0x100000002, 0x100000003},
	}
}

func TestRouter_ListPlayers(t *testing.T) {
	srv := httptest.NewServer(newRouter(newFakeInspector()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/players")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got []streamplayer.Info
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, "rtsp://cam1/stream", got[0].URL)
	assert.Equal(t, streamplayer.StatePaused, got[1].State)
}

func TestRouter_GetPlayer(t *testing.T) {
	srv := httptest.NewServer(newRouter(newFakeInspector()))
	defer srv.Close()

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"hex handle", "/players/0x100000001", http.StatusOK},
		{"decimal handle", "/players/4294967298", http.StatusOK},
		{"unknown handle", "/players/0x100000003", http.StatusNotFound},
		{"malformed handle", "/players/abc", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestRouter_MetricsAndHealth(t *testing.T) {
	srv := httptest.NewServer(newRouter(newFakeInspector()))
	defer srv.Close()

	for _, path := range []string{"/metrics", "/healthz"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestParseWindow(t *testing.T) {
	w, err := parseWindow("0x4a00007")
	require.NoError(t, err)
	assert.Equal(t, uintptr(0x4a00007), w)

	w, err = parseWindow("1234")
	require.NoError(t, err)
	assert.Equal(t, uintptr(1234), w)

	_, err = parseWindow("0")
	assert.Error(t, err)

	_, err = parseWindow("window")
	assert.Error(t, err)
}
