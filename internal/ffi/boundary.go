// Package ffi holds the logic behind the exported C functions: lazy engine
// start, panic containment, status/handle conversion and the string ledger.
// cmd/libstreamplayer only converts C types and calls into it.
package ffi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	streamplayer "github.com/e7canasta/orion-care-sensor/modules/stream-player"
	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/lasterror"
	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/metrics"
)

// StateInvalid is returned by State for handles that are not live.
const StateInvalid = -1

// EngineFactory builds the process-wide engine on first use.
type EngineFactory func() (*streamplayer.Engine, error)

// Boundary is the process-wide state behind the C ABI.
type Boundary struct {
	factory EngineFactory
	strings *Ledger

	once    sync.Once
	engine  atomic.Pointer[streamplayer.Engine]
	initErr error

	// errors raised before an engine exists
	errs *lasterror.Channel
}

func New(factory EngineFactory) *Boundary {
	return &Boundary{
		factory: factory,
		strings: NewLedger(),
		errs:    lasterror.New(),
	}
}

// acquire starts the engine on first use. A failed start is permanent.
func (b *Boundary) acquire() (*streamplayer.Engine, bool) {
	b.once.Do(func() {
		start := time.Now()
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.initErr = fmt.Errorf("panic during engine init: %v", r)
				}
			}()
			var e *streamplayer.Engine
			e, b.initErr = b.factory()
			if b.initErr == nil && e == nil {
				b.initErr = errors.New("engine factory returned no engine")
			}
			if b.initErr == nil {
				b.engine.Store(e)
			}
		}()

		if b.initErr != nil {
			err := &streamplayer.Error{Kind: streamplayer.KindEngineInitFailed, Op: "init", Err: b.initErr}
			b.errs.Set(0, err.Error())
			metrics.RecordError(streamplayer.KindEngineInitFailed.String())
			slog.Error("stream-player: engine init failed", "error", b.initErr)
			return
		}
		slog.Info("stream-player: engine initialized", "elapsed", time.Since(start))
	})

	e := b.engine.Load()
	return e, e != nil
}

// guard runs fn and turns a panic into a PipelineFault (EngineInitFailed
// before the engine exists) recorded in the error channel.
func (b *Boundary) guard(op string, h uint64, fn func() bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			b.fault(op, h, r)
		}
	}()
	return fn()
}

func (b *Boundary) fault(op string, h uint64, r any) {
	slog.Error("stream-player: panic at C boundary",
		"op", op,
		"handle", streamplayer.Handle(h),
		"panic", r,
		"stack", string(debug.Stack()),
	)

	kind := streamplayer.KindPipelineFault
	if b.engine.Load() == nil {
		kind = streamplayer.KindEngineInitFailed
	}
	err := &streamplayer.Error{
		Kind:   kind,
		Op:     op,
		Handle: streamplayer.Handle(h),
		Msg:    fmt.Sprintf("internal fault: %v", r),
	}
	b.report(h, err)
}

func (b *Boundary) report(h uint64, err error) {
	if e := b.engine.Load(); e != nil {
		e.ReportError(streamplayer.Handle(h), err)
		return
	}
	b.errs.Set(0, err.Error())
	metrics.RecordError(streamplayer.KindOf(err).String())
}

// Create returns a handle, or 0 on failure. isNull marks a NULL url
// pointer, which is distinct from an empty string.
func (b *Boundary) Create(url string, isNull bool) uint64 {
	var h uint64
	b.guard("create", 0, func() bool {
		if isNull {
			metrics.RecordMisuse("null_url")
			b.report(0, &streamplayer.Error{Kind: streamplayer.KindInvalidArgument, Op: "create", Msg: "url is NULL"})
			return false
		}
		// bad input never initializes the engine; the scheme allow-list
		// is checked by the engine itself
		if err := streamplayer.CheckLocator(url); err != nil {
			b.report(0, &streamplayer.Error{Kind: streamplayer.KindInvalidArgument, Op: "create", Err: err})
			return false
		}
		e, ok := b.acquire()
		if !ok {
			return false
		}
		hh, err := e.Create(url)
		if err != nil {
			return false
		}
		h = uint64(hh)
		return true
	})
	return h
}

func (b *Boundary) Attach(h uint64, window uintptr) bool {
	return b.control("attach", h, func(e *streamplayer.Engine) error {
		return e.Attach(streamplayer.Handle(h), streamplayer.RenderTarget(window))
	})
}

func (b *Boundary) Play(h uint64) bool {
	return b.control("play", h, func(e *streamplayer.Engine) error { return e.Play(streamplayer.Handle(h)) })
}

func (b *Boundary) Pause(h uint64) bool {
	return b.control("pause", h, func(e *streamplayer.Engine) error { return e.Pause(streamplayer.Handle(h)) })
}

func (b *Boundary) Stop(h uint64) bool {
	return b.control("stop", h, func(e *streamplayer.Engine) error { return e.Stop(streamplayer.Handle(h)) })
}

func (b *Boundary) Destroy(h uint64) bool {
	return b.control("destroy", h, func(e *streamplayer.Engine) error { return e.Destroy(streamplayer.Handle(h)) })
}

// Seek moves to positionMS milliseconds.
func (b *Boundary) Seek(h uint64, positionMS int64) bool {
	return b.control("seek", h, func(e *streamplayer.Engine) error {
		return e.Seek(streamplayer.Handle(h), time.Duration(positionMS)*time.Millisecond)
	})
}

// State returns the PlaybackState as an int, or StateInvalid.
func (b *Boundary) State(h uint64) int {
	state := StateInvalid
	b.guard("state", h, func() bool {
		e, ok := b.acquire()
		if !ok {
			return false
		}
		s, err := e.State(streamplayer.Handle(h))
		if err != nil {
			return false
		}
		state = int(s)
		return true
	})
	return state
}

// control runs one engine call. The engine records its own failures.
func (b *Boundary) control(op string, h uint64, fn func(*streamplayer.Engine) error) bool {
	return b.guard(op, h, func() bool {
		e, ok := b.acquire()
		if !ok {
			return false
		}
		return fn(e) == nil
	})
}

// LastError returns the most recent error message of any player.
func (b *Boundary) LastError() (string, bool) {
	if e := b.engine.Load(); e != nil {
		if msg, ok := e.LastError(); ok {
			return msg, true
		}
	}
	return b.errs.Last()
}

// ErrorFor returns the most recent error message of one player.
func (b *Boundary) ErrorFor(h uint64) (string, bool) {
	e := b.engine.Load()
	if e == nil {
		return "", false
	}
	return e.LastErrorFor(streamplayer.Handle(h))
}

// IssueString records a string pointer handed to the caller.
func (b *Boundary) IssueString(p uintptr) {
	b.strings.Issue(p)
}

// ReleaseString reports whether p may be freed. Unknown and repeated
// frees are rejected and recorded.
func (b *Boundary) ReleaseString(p uintptr) bool {
	err := b.strings.Release(p)
	if err == nil {
		return true
	}
	if errors.Is(err, ErrNullPointer) {
		return false
	}

	metrics.RecordMisuse("unknown_string")
	msg := &streamplayer.Error{
		Kind: streamplayer.KindInvalidArgument,
		Op:   "free_string",
		Msg:  fmt.Sprintf("%#x", p),
		Err:  err,
	}
	b.report(0, msg)
	slog.Warn("stream-player: rejected free of unknown string", "ptr", fmt.Sprintf("%#x", p))
	return false
}

// OutstandingStrings returns the number of strings not yet freed.
func (b *Boundary) OutstandingStrings() int {
	return b.strings.Outstanding()
}

// Shutdown destroys every live player. Later creates fail with
// EngineInitFailed.
func (b *Boundary) Shutdown(ctx context.Context) error {
	var err error
	b.guard("shutdown", 0, func() bool {
		e := b.engine.Load()
		if e == nil {
			return true
		}
		err = e.Close(ctx)
		return err == nil
	})
	return err
}
