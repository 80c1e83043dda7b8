package streamplayer

import (
	"errors"
	"strings"
)

// ErrorKind classifies failures of player operations.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindInvalidArgument: bad input rejected before any resource was touched
	KindInvalidArgument
	// KindInvalidHandle: zero, unknown or destroyed handle
	KindInvalidHandle
	// KindInvalidState: operation not allowed in the current state
	KindInvalidState
	// KindNoRenderTarget: play requested before a window was attached
	KindNoRenderTarget
	// KindStreamUnavailable: the stream could not be reached or opened
	KindStreamUnavailable
	// KindPipelineFault: decode/render failure; the player is stopped
	KindPipelineFault
	// KindTimeout: no acknowledgment within the control timeout
	KindTimeout
	// KindEngineInitFailed: the media framework or a player pipeline could not be initialized
	KindEngineInitFailed
)

// String returns the snake_case name, also used as a metrics label.
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindInvalidHandle:
		return "invalid_handle"
	case KindInvalidState:
		return "invalid_state"
	case KindNoRenderTarget:
		return "no_render_target"
	case KindStreamUnavailable:
		return "stream_unavailable"
	case KindPipelineFault:
		return "pipeline_fault"
	case KindTimeout:
		return "timeout"
	case KindEngineInitFailed:
		return "engine_init_failed"
	default:
		return "unknown"
	}
}

func (k ErrorKind) text() string {
	return strings.ReplaceAll(k.String(), "_", " ")
}

// Error is returned by every failing player operation.
type Error struct {
	Kind   ErrorKind
	Op     string // create, attach, play, pause, stop, seek, destroy, ...
	Handle Handle // zero when no handle was involved
	Msg    string
	Err    error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
	ErrInvalidHandle     = &Error{Kind: KindInvalidHandle}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrNoRenderTarget    = &Error{Kind: KindNoRenderTarget}
	ErrStreamUnavailable = &Error{Kind: KindStreamUnavailable}
	ErrPipelineFault     = &Error{Kind: KindPipelineFault}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrEngineInitFailed  = &Error{Kind: KindEngineInitFailed}
)

func newError(kind ErrorKind, op string, h Handle, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Handle: h, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("stream-player: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		if e.Handle != 0 {
			b.WriteString(" ")
			b.WriteString(e.Handle.String())
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.text())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches kind sentinels (an *Error with only Kind set).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op == "" && t.Msg == "" && t.Err == nil && t.Handle == 0 {
		return t.Kind == e.Kind
	}
	return t == e
}

// KindOf returns the ErrorKind of err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func errDestroyed(op string, h Handle) *Error {
	return newError(KindInvalidHandle, op, h, "player destroyed", nil)
}
