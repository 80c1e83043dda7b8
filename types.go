package streamplayer

import (
	"fmt"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/framestats"
	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/pipeline"
)

// Handle identifies a player. The zero Handle is never valid.
type Handle uint64

func (h Handle) String() string {
	return fmt.Sprintf("%#x", uint64(h))
}

// RenderTarget is a native window or surface handle (HWND, X11 window id,
// NSView pointer). The player never closes or frees it.
type RenderTarget uintptr

// PlaybackState is the observable lifecycle state of a player.
type PlaybackState int

const (
	StateCreated PlaybackState = iota
	StateWindowed
	StatePlaying
	StatePaused
	StateStopped
	StateDestroyed
)

func (s PlaybackState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateWindowed:
		return "windowed"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Backend opens decode/render pipelines. See internal/gstreamer for the
// GStreamer implementation.
type Backend = pipeline.Backend

// RenderStats summarizes rendered frame cadence.
type RenderStats = framestats.Stats

// VideoInfo describes the negotiated video at the sink.
type VideoInfo struct {
	Width     int
	Height    int
	Framerate float64
	Format    string
}

// Info is a point-in-time snapshot of a player.
type Info struct {
	Handle    Handle
	SessionID string
	URL       string // Credentials redacted
	State     PlaybackState
	Target    RenderTarget
	Video     VideoInfo
	Position  time.Duration
	Duration  time.Duration // Zero for live streams
	Buffering bool
	Render    RenderStats
	CreatedAt time.Time
}
