// Command libstreamplayer builds the C shared library:
//
//	go build -buildmode=c-shared -o libstreamplayer.so ./cmd/libstreamplayer
//
// Every exported function is safe to call from any thread. Handles are
// opaque 64-bit values; 0 is never valid. Strings returned by the library
// must be released with rtsp_player_free_string exactly once.
package main

/*
#include <stdlib.h>
#include <stdint.h>
#include <stdbool.h>
*/
import "C"

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
	"unsafe"

	streamplayer "github.com/e7canasta/orion-care-sensor/modules/stream-player"
	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/bootstrap"
	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/ffi"
)

var boundary = ffi.New(newEngine)

var (
	forwardingMu   sync.Mutex
	stopForwarding = func() {}
)

// newEngine runs on the first call into the library.
func newEngine() (*streamplayer.Engine, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}

	logger := cfg.NewLogger(os.Stderr).With("component", "libstreamplayer")
	slog.SetDefault(logger)

	engine, err := bootstrap.NewEngine(cfg, logger)
	if err != nil {
		return nil, err
	}

	// players work without the broker
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stop, err := bootstrap.StartEventForwarding(ctx, cfg, engine, logger)
	if err != nil {
		logger.Warn("stream-player: event forwarding disabled", "error", err)
	} else {
		forwardingMu.Lock()
		stopForwarding = stop
		forwardingMu.Unlock()
	}
	return engine, nil
}

//export rtsp_player_create
func rtsp_player_create(url *C.char) C.uint64_t {
	if url == nil {
		return C.uint64_t(boundary.Create("", true))
	}
	return C.uint64_t(boundary.Create(C.GoString(url), false))
}

//export rtsp_player_set_hwnd
func rtsp_player_set_hwnd(h C.uint64_t, hwnd unsafe.Pointer) C.bool {
	return C.bool(boundary.Attach(uint64(h), uintptr(hwnd)))
}

//export rtsp_player_play
func rtsp_player_play(h C.uint64_t) C.bool {
	return C.bool(boundary.Play(uint64(h)))
}

//export rtsp_player_pause
func rtsp_player_pause(h C.uint64_t) C.bool {
	return C.bool(boundary.Pause(uint64(h)))
}

//export rtsp_player_stop
func rtsp_player_stop(h C.uint64_t) C.bool {
	return C.bool(boundary.Stop(uint64(h)))
}

//export rtsp_player_destroy
func rtsp_player_destroy(h C.uint64_t) C.bool {
	return C.bool(boundary.Destroy(uint64(h)))
}

//export rtsp_player_seek
func rtsp_player_seek(h C.uint64_t, positionMS C.int64_t) C.bool {
	return C.bool(boundary.Seek(uint64(h), int64(positionMS)))
}

// Returns the playback state (0 created .. 5 destroyed) or -1.
//
//export rtsp_player_get_state
func rtsp_player_get_state(h C.uint64_t) C.int {
	return C.int(boundary.State(uint64(h)))
}

//export rtsp_player_get_last_error
func rtsp_player_get_last_error() *C.char {
	msg, ok := boundary.LastError()
	if !ok {
		return nil
	}
	return issue(msg)
}

//export rtsp_player_get_error
func rtsp_player_get_error(h C.uint64_t) *C.char {
	msg, ok := boundary.ErrorFor(uint64(h))
	if !ok {
		return nil
	}
	return issue(msg)
}

//export rtsp_player_free_string
func rtsp_player_free_string(s *C.char) {
	if boundary.ReleaseString(uintptr(unsafe.Pointer(s))) {
		C.free(unsafe.Pointer(s))
	}
}

// Destroys every live player. Intended for process exit.
//
//export rtsp_player_shutdown
func rtsp_player_shutdown(timeoutMS C.int64_t) C.bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()
	err := boundary.Shutdown(ctx)

	forwardingMu.Lock()
	stop := stopForwarding
	forwardingMu.Unlock()
	stop()
	return C.bool(err == nil)
}

func issue(msg string) *C.char {
	s := C.CString(msg)
	boundary.IssueString(uintptr(unsafe.Pointer(s)))
	return s
}

func main() {}
