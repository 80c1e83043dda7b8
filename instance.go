package streamplayer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/eventbus"
	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/lasterror"
	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/metrics"
	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/pipeline"
	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/retry"
)

type command struct {
	op     op
	target RenderTarget
	seek   time.Duration
	ctx    context.Context // caller's deadline; the player does not abort on it
	reply  chan result
}

type result struct {
	err  error
	info Info
}

// instance is one player. Its pipeline and every field below "owned by
// run" are touched only by the run goroutine; other goroutines talk to it
// through cmds and read state atomically.
type instance struct {
	handle    Handle
	sessionID string
	url       string
	createdAt time.Time
	cfg       Config
	backend   pipeline.Backend
	errs      *lasterror.Channel
	bus       *eventbus.Bus[Event]
	log       *slog.Logger

	cmds chan *command
	ctx  context.Context
	down *teardown

	state atomic.Int32

	// owned by run
	pipe      pipeline.Pipeline
	target    RenderTarget
	video     VideoInfo
	live      bool // stream acknowledged PLAYING since the last play
	buffering bool // paused internally while the observable state stays Playing
}

func newInstance(url, sessionID string, cfg Config, backend pipeline.Backend, errs *lasterror.Channel, bus *eventbus.Bus[Event]) *instance {
	ctx, cancel := context.WithCancel(context.Background())
	in := &instance{
		sessionID: sessionID,
		url:       url,
		createdAt: time.Now(),
		cfg:       cfg,
		backend:   backend,
		errs:      errs,
		bus:       bus,
		log:       cfg.Logger,
		cmds:      make(chan *command),
		ctx:       ctx,
		down:      newTeardown(cancel),
	}
	in.state.Store(int32(StateCreated))
	return in
}

// bind runs inside the registry insert, before the goroutine starts.
func (in *instance) bind(h Handle) {
	in.handle = h
	in.log = in.cfg.Logger.With(
		"handle", h,
		"session_id", in.sessionID,
		"url", redactLocator(in.url),
	)
}

func (in *instance) State() PlaybackState {
	return PlaybackState(in.state.Load())
}

// start launches the player goroutine. ready receives the pipeline build
// result exactly once.
func (in *instance) start(ready chan<- error) {
	go in.run(ready)
}

func (in *instance) run(ready chan<- error) {
	defer close(in.down.done)
	defer func() {
		if r := recover(); r != nil {
			in.log.Error("stream-player: panic in player goroutine",
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	p, err := in.open()
	if err != nil {
		ready <- err
		return
	}
	in.pipe = p
	ready <- nil

	in.log.Debug("stream-player: player goroutine started", "backend", in.backend.Name())
	in.loop()
}

func (in *instance) open() (p pipeline.Pipeline, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while building pipeline: %v", r)
		}
	}()
	return in.backend.Open(in.ctx, in.url)
}

func (in *instance) loop() {
	events := in.pipe.Events()
	for {
		select {
		case <-in.down.closing:
			in.teardown()
			return

		case cmd := <-in.cmds:
			in.dispatch(cmd)

		case ev, ok := <-events:
			if !ok {
				events = nil
				in.asyncFault(newError(KindPipelineFault, "pipeline", in.handle, "event stream closed", nil))
				continue
			}
			in.guard(func() { in.onEvent(ev) })
		}
	}
}

// call sends cmd and waits for its result. The wait is bounded by ctx;
// teardown makes it fail with KindInvalidHandle.
func (in *instance) call(ctx context.Context, cmd *command) (result, error) {
	name := cmd.op.String()

	select {
	case in.cmds <- cmd:
	case <-in.down.closing:
		return result{}, errDestroyed(name, in.handle)
	case <-ctx.Done():
		return result{}, newError(KindTimeout, name, in.handle,
			fmt.Sprintf("player busy, command not accepted within %s", in.cfg.ControlTimeout), nil)
	}

	select {
	case res := <-cmd.reply:
		return res, res.err
	case <-in.down.closing:
		select {
		case res := <-cmd.reply:
			return res, res.err
		default:
		}
		return result{}, errDestroyed(name, in.handle)
	case <-ctx.Done():
		select {
		case res := <-cmd.reply:
			return res, res.err
		default:
		}
		return result{}, newError(KindTimeout, name, in.handle,
			fmt.Sprintf("no acknowledgment within %s", in.cfg.ControlTimeout), nil)
	}
}

// shutdown starts the teardown (if nobody did yet) and waits for the
// goroutine to finish.
func (in *instance) shutdown(ctx context.Context) error {
	in.down.begin()
	return in.down.wait(ctx, in.cfg.TeardownWarn, in.log)
}

func (in *instance) dispatch(cmd *command) {
	var res result

	if in.down.isClosing() {
		res.err = errDestroyed(cmd.op.String(), in.handle)
	} else {
		func() {
			defer func() {
				if r := recover(); r != nil {
					res = result{err: in.recovered(cmd.op.String(), r)}
				}
			}()
			res = in.execute(cmd)
		}()
	}

	if res.err != nil && cmd.ctx.Err() != nil {
		// caller already returned Timeout
		in.errs.SetKeyed(uint64(in.handle), res.err.Error())
		in.log.Warn("stream-player: command failed after caller timeout",
			"op", cmd.op.String(),
			"error", res.err,
		)
	}
	cmd.reply <- res
}

func (in *instance) execute(cmd *command) result {
	if cmd.op == opInfo {
		return result{info: in.snapshot()}
	}

	name := cmd.op.String()
	from := in.State()
	to, ok := nextState(from, cmd.op)
	if !ok {
		return result{err: newError(KindInvalidState, name, in.handle,
			fmt.Sprintf("not allowed while %s", from), nil)}
	}

	var err error
	switch cmd.op {
	case opAttach:
		err = in.attach(cmd.target)
	case opPlay:
		err = in.play(from)
	case opPause:
		err = in.pause(from)
	case opStop:
		in.stop(from)
	case opSeek:
		err = in.seek(cmd.seek)
	}
	if errors.Is(err, errEndOfStream) {
		// the stream ended while the command waited; the player is Stopped
		return result{}
	}
	if err != nil {
		return result{err: err}
	}

	in.setState(to)
	return result{}
}

func (in *instance) attach(target RenderTarget) error {
	if err := in.pipe.SetWindow(uintptr(target)); err != nil {
		return newError(KindPipelineFault, "attach", in.handle, "failed to bind render target", err)
	}
	in.target = target
	in.log.Info("stream-player: render target attached", "target", fmt.Sprintf("%#x", uintptr(target)))
	return nil
}

// play starts (or resumes) playback and returns once the pipeline
// acknowledged PLAYING. On failure the player ends Stopped.
func (in *instance) play(from PlaybackState) error {
	if in.target == 0 {
		return newError(KindNoRenderTarget, "play", in.handle, "attach a render target first", nil)
	}
	if from == StatePlaying {
		return nil
	}
	if from == StatePaused {
		return in.resume()
	}

	in.log.Info("stream-player: connecting")
	start := time.Now()

	ctx, cancel := context.WithTimeout(in.ctx, in.cfg.ConnectTimeout)
	defer cancel()

	in.live = false
	in.buffering = false
	retryCfg := retry.Config{
		MaxRetries:    in.cfg.ConnectRetries,
		RetryDelay:    in.cfg.RetryDelay,
		MaxRetryDelay: in.cfg.MaxRetryDelay,
	}
	retryable := func(err error) bool {
		return KindOf(err) == KindStreamUnavailable && in.ctx.Err() == nil
	}

	err := retry.Do(ctx, retryCfg, retryable, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			metrics.ConnectRetriesTotal.Inc()
			in.log.Info("stream-player: retrying connect", "attempt", attempt)
		}
		err := in.connect(ctx)
		if err != nil {
			in.pipelineNull()
		}
		return err
	})
	if err != nil {
		in.setState(StateStopped)
		if in.ctx.Err() != nil {
			return errDestroyed("play", in.handle)
		}
		var perr *Error
		if errors.As(err, &perr) {
			return perr
		}
		return newError(KindStreamUnavailable, "play", in.handle, "", err)
	}

	in.live = true
	in.log.Info("stream-player: playing", "connect_time", time.Since(start))
	return nil
}

func (in *instance) connect(ctx context.Context) error {
	if err := in.pipe.SetState(pipeline.StatePlaying); err != nil {
		return newError(KindStreamUnavailable, "play", in.handle, "failed to start pipeline", err)
	}
	return in.await(ctx, pipeline.StatePlaying, "play")
}

func (in *instance) resume() error {
	ctx, cancel := context.WithTimeout(in.ctx, in.cfg.StateTimeout)
	defer cancel()

	if err := in.pipe.SetState(pipeline.StatePlaying); err != nil {
		return in.commandFault("play", newError(KindPipelineFault, "play", in.handle, "failed to resume pipeline", err))
	}
	if err := in.await(ctx, pipeline.StatePlaying, "play"); err != nil {
		if errors.Is(err, errEndOfStream) {
			return err
		}
		return in.commandFault("play", err)
	}
	in.buffering = false
	return nil
}

func (in *instance) pause(from PlaybackState) error {
	if from == StatePaused {
		return nil
	}

	ctx, cancel := context.WithTimeout(in.ctx, in.cfg.StateTimeout)
	defer cancel()

	if err := in.pipe.SetState(pipeline.StatePaused); err != nil {
		return in.commandFault("pause", newError(KindPipelineFault, "pause", in.handle, "failed to pause pipeline", err))
	}
	if in.buffering {
		// already paused internally; no state change will be posted
		in.buffering = false
		return nil
	}
	if err := in.await(ctx, pipeline.StatePaused, "pause"); err != nil {
		if errors.Is(err, errEndOfStream) {
			return err
		}
		return in.commandFault("pause", err)
	}
	return nil
}

// stop releases network and decoder resources. The render target binding
// is kept.
func (in *instance) stop(from PlaybackState) {
	if from == StateStopped {
		return
	}
	in.pipelineNull()
	in.log.Info("stream-player: stopped")
}

func (in *instance) seek(position time.Duration) error {
	err := in.pipe.Seek(position)
	if errors.Is(err, pipeline.ErrNotSeekable) {
		return newError(KindInvalidState, "seek", in.handle, "stream is not seekable", nil)
	}
	if err != nil {
		return newError(KindInvalidState, "seek", in.handle, "seek rejected", err)
	}
	in.log.Debug("stream-player: seek", "position", position)
	return nil
}

// errEndOfStream is returned by await when a live stream ends while a
// command waits. The player is already Stopped.
var errEndOfStream = errors.New("end of stream")

// await consumes pipeline events until the pipeline reaches target, posts
// an error, or ctx ends. Other events are handled as usual.
func (in *instance) await(ctx context.Context, target pipeline.State, opName string) error {
	events := in.pipe.Events()
	for {
		select {
		case <-ctx.Done():
			if in.ctx.Err() != nil {
				return errDestroyed(opName, in.handle)
			}
			kind := KindPipelineFault
			if !in.live {
				kind = KindStreamUnavailable
			}
			return newError(kind, opName, in.handle,
				fmt.Sprintf("pipeline did not reach %s in time", target), ctx.Err())

		case ev, ok := <-events:
			if !ok {
				return newError(KindPipelineFault, opName, in.handle, "event stream closed", nil)
			}
			in.observe(ev)

			switch ev.Kind {
			case pipeline.EventStateChanged:
				if ev.State == target {
					return nil
				}
			case pipeline.EventError:
				return in.classify(opName, ev)
			case pipeline.EventEOS:
				if !in.live {
					return newError(KindStreamUnavailable, opName, in.handle, "end of stream before playback started", nil)
				}
				in.log.Info("stream-player: end of stream", "op", opName)
				in.forceStop()
				return errEndOfStream
			}
		}
	}
}

// classify maps a backend error to an ErrorKind. Before the stream was
// acknowledged only codec errors are pipeline faults.
func (in *instance) classify(opName string, ev pipeline.Event) *Error {
	msg := ev.Category.String() + " error"
	if in.live || ev.Category == pipeline.CategoryCodec {
		return newError(KindPipelineFault, opName, in.handle, msg, ev.Err)
	}
	return newError(KindStreamUnavailable, opName, in.handle, msg, ev.Err)
}

// onEvent handles pipeline events while no command is in progress.
func (in *instance) onEvent(ev pipeline.Event) {
	in.observe(ev)

	state := in.State()
	streaming := state == StatePlaying || state == StatePaused

	switch ev.Kind {
	case pipeline.EventError:
		if !streaming {
			in.log.Debug("stream-player: ignoring pipeline error while not streaming",
				"state", state,
				"error", ev.Err,
			)
			return
		}
		in.asyncFault(in.classify("pipeline", ev))

	case pipeline.EventEOS:
		if !streaming {
			return
		}
		in.log.Info("stream-player: end of stream")
		in.forceStop()

	case pipeline.EventBuffering:
		if state != StatePlaying || !in.live {
			return
		}
		switch {
		case ev.Percent < 100 && !in.buffering:
			in.log.Debug("stream-player: buffering, pausing pipeline", "percent", ev.Percent)
			if err := in.pipe.SetState(pipeline.StatePaused); err != nil {
				in.asyncFault(newError(KindPipelineFault, "pipeline", in.handle, "failed to pause for buffering", err))
				return
			}
			in.buffering = true
		case ev.Percent >= 100 && in.buffering:
			in.log.Debug("stream-player: buffering complete, resuming pipeline")
			if err := in.pipe.SetState(pipeline.StatePlaying); err != nil {
				in.asyncFault(newError(KindPipelineFault, "pipeline", in.handle, "failed to resume after buffering", err))
				return
			}
			in.buffering = false
		}
	}
}

// observe records metrics, keeps video info and forwards the event to
// subscribers.
func (in *instance) observe(ev pipeline.Event) {
	metrics.RecordPipelineEvent(ev.Kind.String())

	switch ev.Kind {
	case pipeline.EventError:
		metrics.RecordPipelineError(ev.Category.String())
		in.log.Error("stream-player: pipeline error",
			"error", ev.Err,
			"debug", ev.Debug,
			"category", ev.Category.String(),
		)
	case pipeline.EventWarning:
		in.log.Warn("stream-player: pipeline warning", "warning", ev.Err, "debug", ev.Debug)
	case pipeline.EventVideoInfo:
		in.video = videoInfoFrom(ev.Video)
		in.log.Info("stream-player: video negotiated",
			"width", ev.Video.Width,
			"height", ev.Video.Height,
			"framerate", ev.Video.Framerate,
			"format", ev.Video.Format,
		)
	}

	kind, ok := publicEventKind(ev.Kind)
	if !ok {
		return
	}
	out := Event{
		Handle:  in.handle,
		Kind:    kind,
		State:   in.State(),
		Percent: ev.Percent,
		Video:   videoInfoFrom(ev.Video),
		Time:    time.Now(),
	}
	if ev.Err != nil {
		out.Message = ev.Err.Error()
	}
	in.bus.Publish(out)
}

// commandFault stops the player after a failed pause/resume and returns
// the error for the caller (who records it).
func (in *instance) commandFault(opName string, err error) error {
	if in.ctx.Err() != nil {
		return errDestroyed(opName, in.handle)
	}
	in.forceStop()
	var perr *Error
	if errors.As(err, &perr) && perr.Kind == KindPipelineFault {
		return perr
	}
	return newError(KindPipelineFault, opName, in.handle, "", err)
}

// asyncFault stops the player and reports err to the error channel. Used
// when no caller is waiting.
func (in *instance) asyncFault(err *Error) {
	in.forceStop()
	in.report(err)
}

func (in *instance) report(err *Error) {
	in.errs.Set(uint64(in.handle), err.Error())
	metrics.RecordError(err.Kind.String())
	in.log.Error("stream-player: player faulted", "kind", err.Kind.String(), "error", err)
	in.bus.Publish(Event{
		Handle:  in.handle,
		Kind:    EventError,
		State:   in.State(),
		Message: err.Error(),
		Time:    time.Now(),
	})
}

// forceStop brings the pipeline to NULL and the player to Stopped.
func (in *instance) forceStop() {
	in.pipelineNull()
	in.setState(StateStopped)
}

func (in *instance) pipelineNull() {
	in.live = false
	in.buffering = false
	if in.pipe == nil {
		return
	}
	if err := in.pipe.SetState(pipeline.StateNull); err != nil {
		in.log.Warn("stream-player: failed to set pipeline to NULL", "error", err)
	}
}

// guard runs fn and converts a panic into a reported pipeline fault.
func (in *instance) guard(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			in.report(in.recovered("pipeline", r))
		}
	}()
	fn()
}

// recovered turns a panic inside the player goroutine into a
// PipelineFault and leaves the player Stopped.
func (in *instance) recovered(opName string, r any) *Error {
	in.log.Error("stream-player: recovered panic",
		"op", opName,
		"panic", r,
		"stack", string(debug.Stack()),
	)
	func() {
		defer func() { _ = recover() }()
		in.pipelineNull()
	}()
	in.setState(StateStopped)
	return newError(KindPipelineFault, opName, in.handle, fmt.Sprintf("internal fault: %v", r), nil)
}

func (in *instance) setState(s PlaybackState) {
	old := PlaybackState(in.state.Swap(int32(s)))
	if old == s {
		return
	}

	if s == StatePlaying {
		metrics.PlayersPlaying.Inc()
	} else if old == StatePlaying {
		metrics.PlayersPlaying.Dec()
	}

	in.log.Debug("stream-player: state changed", "from", old, "to", s)
	in.bus.Publish(Event{Handle: in.handle, Kind: EventStateChanged, State: s, Time: time.Now()})
}

func (in *instance) snapshot() Info {
	info := Info{
		Handle:    in.handle,
		SessionID: in.sessionID,
		URL:       redactLocator(in.url),
		State:     in.State(),
		Target:    in.target,
		Video:     in.video,
		Buffering: in.buffering,
		CreatedAt: in.createdAt,
	}
	if in.pipe != nil {
		if pos, dur, ok := in.pipe.Position(); ok {
			info.Position, info.Duration = pos, dur
		}
		info.Render = in.pipe.RenderStats()
	}
	return info
}

func (in *instance) teardown() {
	in.log.Debug("stream-player: tearing down pipeline")

	if in.pipe != nil {
		in.pipelineNull()
		if err := in.pipe.Close(); err != nil {
			in.log.Warn("stream-player: failed to close pipeline", "error", err)
		}
		in.pipe = nil
	}
	in.target = 0
	in.setState(StateDestroyed)
}
