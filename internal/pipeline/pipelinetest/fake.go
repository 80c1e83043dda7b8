// Package pipelinetest provides a scripted in-memory pipeline backend for
// engine tests.
package pipelinetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/framestats"
	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/pipeline"
)

// ErrConnectRefused is the error posted when an unreachable stream is played.
var ErrConnectRefused = errors.New("Could not open resource for reading and writing.")

// Backend is a pipeline.Backend whose pipelines acknowledge state changes
// immediately (or after AckDelay) unless scripted otherwise.
type Backend struct {
	mu          sync.Mutex
	unreachable map[string]bool
	failPlays   int
	openErr     error
	openDelay   time.Duration
	ackDelay    time.Duration
	seekable    bool
	panicOnPlay bool
	pipelines   []*Pipeline
}

// NewBackend creates a backend where every stream is reachable.
func NewBackend() *Backend {
	return &Backend{unreachable: make(map[string]bool)}
}

func (b *Backend) Name() string { return "fake" }

// SetUnreachable makes play on url post a network error.
func (b *Backend) SetUnreachable(url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unreachable[url] = true
}

// FailPlays makes the next n play attempts of new pipelines fail with a
// network error before succeeding.
func (b *Backend) FailPlays(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failPlays = n
}

// SetOpenError makes Open fail with err.
func (b *Backend) SetOpenError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openErr = err
}

// SetOpenDelay delays Open by d (or until its context ends).
func (b *Backend) SetOpenDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openDelay = d
}

// SetAckDelay delays state-change acknowledgments by d.
func (b *Backend) SetAckDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ackDelay = d
}

// SetSeekable controls whether new pipelines accept seeks.
func (b *Backend) SetSeekable(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seekable = v
}

// SetPanicOnPlay makes SetState(StatePlaying) panic.
func (b *Backend) SetPanicOnPlay(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.panicOnPlay = v
}

// Pipelines returns every pipeline opened so far.
func (b *Backend) Pipelines() []*Pipeline {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Pipeline(nil), b.pipelines...)
}

// Last returns the most recently opened pipeline, or nil.
func (b *Backend) Last() *Pipeline {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pipelines) == 0 {
		return nil
	}
	return b.pipelines[len(b.pipelines)-1]
}

func (b *Backend) Open(ctx context.Context, url string) (pipeline.Pipeline, error) {
	b.mu.Lock()
	delay, openErr := b.openDelay, b.openErr
	b.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if openErr != nil {
		return nil, openErr
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	p := &Pipeline{
		url:         url,
		events:      make(chan pipeline.Event, 256),
		unreachable: b.unreachable[url],
		failPlays:   b.failPlays,
		ackDelay:    b.ackDelay,
		seekable:    b.seekable,
		panicOnPlay: b.panicOnPlay,
		frames:      framestats.NewWindow(16),
	}
	b.pipelines = append(b.pipelines, p)
	return p, nil
}

// Pipeline is a scripted pipeline.Pipeline.
type Pipeline struct {
	mu          sync.Mutex
	url         string
	events      chan pipeline.Event
	state       pipeline.State
	window      uintptr
	unreachable bool
	failPlays   int
	ackDelay    time.Duration
	seekable    bool
	panicOnPlay bool
	position    time.Duration
	closed      bool
	calls       []string
	frames      *framestats.Window
}

func (p *Pipeline) SetWindow(handle uintptr) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.New("pipeline closed")
	}
	p.window = handle
	p.calls = append(p.calls, fmt.Sprintf("window:%#x", handle))
	return nil
}

func (p *Pipeline) SetState(s pipeline.State) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.New("pipeline closed")
	}
	p.calls = append(p.calls, "state:"+s.String())

	if s == pipeline.StatePlaying {
		if p.panicOnPlay {
			panic("pipelinetest: scripted panic on play")
		}
		if p.unreachable || p.failPlays > 0 {
			if p.failPlays > 0 {
				p.failPlays--
			}
			p.emitLocked(pipeline.Event{
				Kind:     pipeline.EventError,
				Err:      ErrConnectRefused,
				Debug:    "gstrtspsrc.c: Failed to connect.",
				Category: pipeline.CategoryNetwork,
			})
			return nil
		}
	}

	p.state = s
	ack := pipeline.Event{Kind: pipeline.EventStateChanged, State: s}
	if p.ackDelay > 0 && s != pipeline.StateNull {
		time.AfterFunc(p.ackDelay, func() { p.Inject(ack) })
		return nil
	}
	p.emitLocked(ack)
	return nil
}

func (p *Pipeline) Seek(position time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.seekable {
		return pipeline.ErrNotSeekable
	}
	p.position = position
	p.calls = append(p.calls, fmt.Sprintf("seek:%s", position))
	return nil
}

func (p *Pipeline) Position() (time.Duration, time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state < pipeline.StatePaused {
		return 0, 0, false
	}
	if !p.seekable {
		return p.position, 0, true
	}
	return p.position, time.Minute, true
}

func (p *Pipeline) Events() <-chan pipeline.Event { return p.events }

func (p *Pipeline) RenderStats() framestats.Stats { return p.frames.Snapshot() }

func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.state = pipeline.StateNull
	p.window = 0
	close(p.events)
	return nil
}

// Inject posts ev as if the backend produced it. Ignored after Close.
func (p *Pipeline) Inject(ev pipeline.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emitLocked(ev)
}

// RecordFrame feeds a rendered frame timestamp into the render stats.
func (p *Pipeline) RecordFrame(t time.Time) { p.frames.Record(t) }

// State returns the last state requested by the engine.
func (p *Pipeline) State() pipeline.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Window returns the bound window handle (0 after Close).
func (p *Pipeline) Window() uintptr {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.window
}

// Closed reports whether Close was called.
func (p *Pipeline) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Calls returns the recorded engine calls in order.
func (p *Pipeline) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *Pipeline) emitLocked(ev pipeline.Event) {
	if p.closed {
		return
	}
	select {
	case p.events <- ev:
	default:
	}
}
