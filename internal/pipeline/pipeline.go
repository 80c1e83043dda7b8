// Package pipeline defines the contract between the player engine and a
// media backend. The engine owns exactly one Pipeline per player and drives
// it from a single goroutine; backends deliver asynchronous results through
// the Events channel.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/framestats"
)

// ErrNotSeekable is returned by Seek when the stream has no seekable range.
var ErrNotSeekable = errors.New("stream is not seekable")

// State mirrors the media framework's element states.
type State int

const (
	StateNull State = iota
	StateReady
	StatePaused
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateNull:
		return "null"
	case StateReady:
		return "ready"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// ErrorCategory classifies backend errors.
type ErrorCategory int

const (
	// CategoryNetwork indicates connection, timeout or DNS failures
	CategoryNetwork ErrorCategory = iota
	// CategoryCodec indicates decode, format or negotiation failures
	CategoryCodec
	// CategoryAuth indicates authentication/authorization failures
	CategoryAuth
	// CategoryUnknown indicates unclassified errors
	CategoryUnknown
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryNetwork:
		return "network"
	case CategoryCodec:
		return "codec"
	case CategoryAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// EventKind identifies a backend event.
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventError
	EventWarning
	EventEOS
	EventBuffering
	EventStreamStart
	EventVideoInfo
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state_changed"
	case EventError:
		return "error"
	case EventWarning:
		return "warning"
	case EventEOS:
		return "eos"
	case EventBuffering:
		return "buffering"
	case EventStreamStart:
		return "stream_start"
	case EventVideoInfo:
		return "video_info"
	default:
		return "unknown"
	}
}

// VideoInfo describes the negotiated video at the sink.
type VideoInfo struct {
	Width     int
	Height    int
	Framerate float64
	Format    string
}

// Event is an asynchronous notification from a pipeline.
type Event struct {
	Kind     EventKind
	State    State         // EventStateChanged: new pipeline state
	Err      error         // EventError, EventWarning
	Debug    string        // EventError, EventWarning: backend debug detail
	Category ErrorCategory // EventError
	Percent  int           // EventBuffering
	Video    VideoInfo     // EventVideoInfo
}

// Pipeline is one decode/render graph.
//
// Methods other than Events and RenderStats are called only from the
// owning player goroutine. Events is closed after Close returns.
type Pipeline interface {
	// SetWindow binds the video sink to a native window handle. The handle
	// is a non-owning reference.
	SetWindow(handle uintptr) error
	// SetState requests a state change. Completion is reported with an
	// EventStateChanged (or EventError).
	SetState(State) error
	Seek(position time.Duration) error
	// Position returns the current position and duration, if known.
	Position() (position, duration time.Duration, ok bool)
	Events() <-chan Event
	RenderStats() framestats.Stats
	Close() error
}

// Backend opens pipelines for stream locators.
type Backend interface {
	Name() string
	Open(ctx context.Context, url string) (Pipeline, error)
}
