package streamplayer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/eventbus"
	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/handles"
	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/lasterror"
	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/metrics"
)

// Engine owns every player created through it.
//
// All methods are safe for concurrent use.
type Engine struct {
	cfg      Config
	backend  Backend
	registry *handles.Table[*instance]
	errs     *lasterror.Channel
	bus      *eventbus.Bus[Event]
	log      *slog.Logger
	closed   atomic.Bool
}

// New creates an engine that builds pipelines with backend.
//
// Zero-valued Config fields take their DefaultConfig values.
func New(cfg Config, backend Backend) (*Engine, error) {
	if backend == nil {
		return nil, newError(KindEngineInitFailed, "init", 0, "no pipeline backend", nil)
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, newError(KindEngineInitFailed, "init", 0, "invalid configuration", err)
	}

	e := &Engine{
		cfg:      cfg,
		backend:  backend,
		registry: handles.New[*instance](),
		errs:     lasterror.New(),
		bus:      eventbus.New[Event](),
		log:      cfg.Logger,
	}

	e.log.Info("stream-player: engine started",
		"backend", backend.Name(),
		"control_timeout", cfg.ControlTimeout,
		"connect_timeout", cfg.ConnectTimeout,
		"connect_retries", cfg.ConnectRetries,
	)
	return e, nil
}

// Create validates url, builds the player pipeline and returns a handle to
// a player in StateCreated.
//
// No goroutine or registry entry survives a failed Create.
func (e *Engine) Create(url string) (Handle, error) {
	start := time.Now()
	h, err := e.create(url)
	e.finish("create", h, start, err)
	return h, err
}

func (e *Engine) create(url string) (Handle, error) {
	if e.closed.Load() {
		return 0, newError(KindEngineInitFailed, "create", 0, "engine closed", nil)
	}
	if err := ValidateLocator(url, e.cfg.AllowedSchemes); err != nil {
		return 0, newError(KindInvalidArgument, "create", 0, "", err)
	}

	inst := newInstance(url, uuid.NewString(), e.cfg, e.backend, e.errs, e.bus)
	hh, err := e.registry.InsertFunc(func(hh handles.Handle) *instance {
		inst.bind(Handle(hh))
		// live while in the registry; whoever removes the entry decrements
		metrics.PlayersLive.Inc()
		return inst
	})
	if errors.Is(err, handles.ErrClosed) {
		return 0, newError(KindEngineInitFailed, "create", 0, "engine closed", nil)
	}
	if err != nil {
		return 0, newError(KindEngineInitFailed, "create", 0, "", err)
	}
	h := Handle(hh)

	ready := make(chan error, 1)
	inst.start(ready)

	timer := time.NewTimer(e.cfg.InitTimeout)
	defer timer.Stop()

	var initErr error
	select {
	case initErr = <-ready:
	case <-timer.C:
		initErr = fmt.Errorf("pipeline not ready within %s", e.cfg.InitTimeout)
	}
	if initErr != nil {
		if _, err := e.registry.Remove(hh); err == nil {
			metrics.PlayersLive.Dec()
		}
		_ = inst.shutdown(context.Background())
		return 0, newError(KindEngineInitFailed, "create", 0, "failed to build pipeline", initErr)
	}

	if _, err := e.registry.Get(hh); err != nil {
		// Close drained the entry while the pipeline was being built
		_ = inst.shutdown(context.Background())
		return 0, newError(KindEngineInitFailed, "create", 0, "engine closed", nil)
	}

	inst.log.Info("stream-player: player created", "backend", e.backend.Name())
	return h, nil
}

// Attach binds the player to a native render target. Allowed while the
// player is not streaming (created, windowed, stopped).
func (e *Engine) Attach(h Handle, target RenderTarget) error {
	if target == 0 {
		err := newError(KindInvalidArgument, "attach", h, "render target is null", nil)
		e.finish("attach", h, time.Now(), err)
		return err
	}
	_, err := e.control(h, &command{op: opAttach, target: target})
	return err
}

// Play starts or resumes playback and returns once the stream is playing.
func (e *Engine) Play(h Handle) error {
	_, err := e.control(h, &command{op: opPlay})
	return err
}

// Pause pauses a playing player. Pausing a paused player succeeds.
func (e *Engine) Pause(h Handle) error {
	_, err := e.control(h, &command{op: opPause})
	return err
}

// Stop releases network and decoder resources but keeps the player and its
// render target binding.
func (e *Engine) Stop(h Handle) error {
	_, err := e.control(h, &command{op: opStop})
	return err
}

// Seek moves a playing or paused player to position.
func (e *Engine) Seek(h Handle, position time.Duration) error {
	if position < 0 {
		err := newError(KindInvalidArgument, "seek", h, fmt.Sprintf("negative position %s", position), nil)
		e.finish("seek", h, time.Now(), err)
		return err
	}
	_, err := e.control(h, &command{op: opSeek, seek: position})
	return err
}

// Info returns a snapshot of the player. Its failures are returned but
// never recorded as the last error.
func (e *Engine) Info(h Handle) (Info, error) {
	res, err := e.control(h, &command{op: opInfo})
	return res.info, err
}

// State returns the observable playback state without queueing behind
// in-flight commands.
func (e *Engine) State(h Handle) (PlaybackState, error) {
	inst, err := e.resolve("state", h)
	if err != nil {
		e.record(h, err)
		return 0, err
	}
	return inst.State(), nil
}

// Destroy tears the player down and invalidates h. It returns once the
// pipeline is gone. Concurrent or repeated calls: exactly one succeeds,
// the others fail with KindInvalidHandle.
func (e *Engine) Destroy(h Handle) error {
	start := time.Now()

	inst, err := e.registry.Remove(handles.Handle(h))
	if err != nil {
		derr := newError(KindInvalidHandle, "destroy", h, "unknown or already destroyed handle", nil)
		e.finish("destroy", h, start, derr)
		return derr
	}

	metrics.PlayersLive.Dec()
	_ = inst.shutdown(context.Background())
	e.errs.Forget(uint64(h))

	metrics.TeardownDuration.Observe(time.Since(start).Seconds())
	inst.log.Info("stream-player: player destroyed", "teardown", time.Since(start))
	e.finish("destroy", h, start, nil)
	return nil
}

// LastError returns the most recent error message of any player. Reading
// does not clear it.
func (e *Engine) LastError() (string, bool) {
	return e.errs.Last()
}

// LastErrorFor returns the most recent error message of one player.
func (e *Engine) LastErrorFor(h Handle) (string, bool) {
	return e.errs.LastFor(uint64(h))
}

// ReportError records err in the error channel. Used by boundary layers
// for failures that happen outside an engine call.
func (e *Engine) ReportError(h Handle, err error) {
	if err == nil {
		return
	}
	e.record(h, err)
}

// Handles returns the handles of all live players.
func (e *Engine) Handles() []Handle {
	hs := e.registry.Handles()
	out := make([]Handle, len(hs))
	for i, h := range hs {
		out[i] = Handle(h)
	}
	return out
}

// Subscribe delivers events to ch. Events are dropped when ch is full.
func (e *Engine) Subscribe(id string, ch chan<- Event) error {
	return e.bus.Subscribe(id, ch)
}

// SubscribeLatest returns a receiver that only holds the most recent event.
func (e *Engine) SubscribeLatest(id string) (EventReceiver, error) {
	rx, err := e.bus.SubscribeLatest(id)
	if err != nil {
		return nil, err
	}
	return rx, nil
}

// Unsubscribe removes a subscription.
func (e *Engine) Unsubscribe(id string) error {
	return e.bus.Unsubscribe(id)
}

// Close destroys every live player in parallel and rejects further creates.
// It returns ctx.Err() if ctx ends before all teardowns complete.
func (e *Engine) Close(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	insts := e.registry.Close()
	e.log.Info("stream-player: closing engine", "players", len(insts))

	g, gctx := errgroup.WithContext(ctx)
	for _, inst := range insts {
		g.Go(func() error {
			metrics.PlayersLive.Dec()
			err := inst.shutdown(gctx)
			if err == nil {
				e.errs.Forget(uint64(inst.handle))
			}
			return err
		})
	}
	err := g.Wait()

	e.bus.Close()
	if err != nil {
		e.log.Warn("stream-player: engine closed before all players finished teardown", "error", err)
		return err
	}
	e.log.Info("stream-player: engine closed")
	return nil
}

// control resolves h, sends cmd to the player and waits for the result
// within the control timeout.
func (e *Engine) control(h Handle, cmd *command) (result, error) {
	start := time.Now()
	name := cmd.op.String()

	inst, err := e.resolve(name, h)
	if err != nil {
		e.finish(name, h, start, err)
		return result{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ControlTimeout)
	defer cancel()

	cmd.ctx = ctx
	cmd.reply = make(chan result, 1)

	res, err := inst.call(ctx, cmd)
	e.finish(name, h, start, err)
	return res, err
}

func (e *Engine) resolve(opName string, h Handle) (*instance, error) {
	if h == 0 {
		return nil, newError(KindInvalidHandle, opName, h, "null handle", nil)
	}
	inst, err := e.registry.Get(handles.Handle(h))
	if err != nil {
		return nil, newError(KindInvalidHandle, opName, h, "unknown or destroyed handle", nil)
	}
	return inst, nil
}

// finish records metrics and, on failure, writes the error channel.
func (e *Engine) finish(opName string, h Handle, start time.Time, err error) {
	if opName == opInfo.String() {
		// read-only snapshots leave the error channel and op metrics alone
		return
	}
	result := "ok"
	if err != nil {
		result = KindOf(err).String()
		e.record(h, err)
	}
	metrics.RecordControl(opName, result, time.Since(start))
}

func (e *Engine) record(h Handle, err error) {
	kind := KindOf(err)
	key := uint64(h)
	if kind == KindInvalidHandle {
		// no slot for handles that are not live
		key = 0
	}
	e.errs.Set(key, err.Error())
	metrics.RecordError(kind.String())

	level := slog.LevelWarn
	var perr *Error
	if errors.As(err, &perr) && (perr.Kind == KindPipelineFault || perr.Kind == KindEngineInitFailed) {
		level = slog.LevelError
	}
	e.log.Log(context.Background(), level, "stream-player: operation failed",
		"handle", h,
		"kind", kind.String(),
		"error", err,
	)
}
