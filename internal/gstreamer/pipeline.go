package gstreamer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/framestats"
	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/pipeline"
)

const sinkName = "videosink"

// gstPipeline is one player's pipeline. Control methods are called from
// the player goroutine; the bus monitor and pad probe post events.
type gstPipeline struct {
	locator  *url.URL
	log      *slog.Logger
	pipeline *gst.Pipeline
	sink     *gst.Element

	requested pipeline.State
	window    uintptr

	frames   *framestats.Window
	sawFrame atomic.Bool

	mu     sync.RWMutex
	events chan pipeline.Event
	closed bool
	quit   chan struct{} // closed first by Close; releases blocked emits

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func newPipeline(ctx context.Context, cfg Config, protocols int, locator string) (*gstPipeline, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("invalid locator: %w", err)
	}

	pipe, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	queue, err := gst.NewElement("queue")
	if err != nil {
		return nil, fmt.Errorf("failed to create queue: %w", err)
	}
	// leaky downstream: keep rendering current frames when the sink falls behind
	queue.SetProperty("leaky", 2)
	queue.SetProperty("max-size-buffers", uint(3))

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}

	sink, err := gst.NewElementWithName(cfg.VideoSink, sinkName)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", cfg.VideoSink, err)
	}

	p := &gstPipeline{
		locator:  u,
		log:      cfg.Logger.With("url", u.Redacted()),
		pipeline: pipe,
		sink:     sink,
		frames:   framestats.NewWindow(framestats.DefaultWindow),
		events:   make(chan pipeline.Event, 64),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	switch u.Scheme {
	case "rtsp", "rtsps":
		err = p.buildRTSP(cfg, protocols, queue, convert)
	case "testsrc":
		err = p.buildTestSource(queue, convert)
	default:
		err = p.buildURIDecode(queue, convert)
	}
	if err != nil {
		pipe.SetState(gst.StateNull)
		return nil, err
	}

	if err := p.addRenderProbe(); err != nil {
		p.log.Warn("stream-player: failed to add render probe, continuing without render stats", "error", err)
	}

	mctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	go p.monitor(mctx)

	p.log.Debug("stream-player: pipeline created", "scheme", u.Scheme, "video_sink", cfg.VideoSink)
	return p, nil
}

// buildRTSP: rtspsrc → decodebin → queue → videoconvert → sink.
// Both sources have dynamic pads, linked in pad-added callbacks.
func (p *gstPipeline) buildRTSP(cfg Config, protocols int, queue, convert *gst.Element) error {
	src, err := gst.NewElement("rtspsrc")
	if err != nil {
		return fmt.Errorf("failed to create rtspsrc: %w", err)
	}
	src.SetProperty("location", p.locator.String())
	src.SetProperty("protocols", protocols)
	src.SetProperty("latency", uint(cfg.Latency/time.Millisecond))
	src.SetProperty("buffer-mode", 3) // auto
	src.SetProperty("tcp-timeout", uint64(cfg.TCPTimeout/time.Microsecond))
	src.SetProperty("retry", cfg.Retry)

	decode, err := gst.NewElement("decodebin")
	if err != nil {
		return fmt.Errorf("failed to create decodebin: %w", err)
	}

	if err := p.pipeline.AddMany(src, decode, queue, convert, p.sink); err != nil {
		return fmt.Errorf("failed to add elements: %w", err)
	}
	if err := gst.ElementLinkMany(queue, convert, p.sink); err != nil {
		return fmt.Errorf("failed to link elements: %w", err)
	}

	src.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
		// one pad per RTP stream; only video goes to the decoder
		if caps := srcPad.GetCurrentCaps(); caps != nil && !strings.Contains(caps.String(), "media=(string)video") {
			p.log.Debug("stream-player: ignoring non-video rtp pad", "pad", srcPad.GetName(), "caps", caps.String())
			return
		}
		p.linkPad(srcPad, decode)
	})
	decode.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
		p.linkVideoPad(srcPad, queue)
	})
	return nil
}

// buildTestSource: videotestsrc → queue → videoconvert → sink. The pattern
// is the locator host, e.g. testsrc://ball.
func (p *gstPipeline) buildTestSource(queue, convert *gst.Element) error {
	pattern, err := testPattern(p.locator.Hostname())
	if err != nil {
		return err
	}

	src, err := gst.NewElement("videotestsrc")
	if err != nil {
		return fmt.Errorf("failed to create videotestsrc: %w", err)
	}
	src.SetProperty("is-live", true)
	src.SetProperty("pattern", pattern)

	if err := p.pipeline.AddMany(src, queue, convert, p.sink); err != nil {
		return fmt.Errorf("failed to add elements: %w", err)
	}
	if err := gst.ElementLinkMany(src, queue, convert, p.sink); err != nil {
		return fmt.Errorf("failed to link elements: %w", err)
	}
	return nil
}

// buildURIDecode: uridecodebin → queue → videoconvert → sink.
func (p *gstPipeline) buildURIDecode(queue, convert *gst.Element) error {
	src, err := gst.NewElement("uridecodebin")
	if err != nil {
		return fmt.Errorf("failed to create uridecodebin: %w", err)
	}
	src.SetProperty("uri", p.locator.String())

	if err := p.pipeline.AddMany(src, queue, convert, p.sink); err != nil {
		return fmt.Errorf("failed to add elements: %w", err)
	}
	if err := gst.ElementLinkMany(queue, convert, p.sink); err != nil {
		return fmt.Errorf("failed to link elements: %w", err)
	}

	src.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
		p.linkVideoPad(srcPad, queue)
	})
	return nil
}

// linkVideoPad links srcPad to next if it carries raw or encoded video.
func (p *gstPipeline) linkVideoPad(srcPad *gst.Pad, next *gst.Element) {
	caps := srcPad.GetCurrentCaps()
	if caps == nil || !strings.HasPrefix(caps.String(), "video/") {
		p.log.Debug("stream-player: ignoring non-video pad", "pad", srcPad.GetName())
		return
	}
	p.linkPad(srcPad, next)
}

func (p *gstPipeline) linkPad(srcPad *gst.Pad, next *gst.Element) {
	sinkPad := next.GetStaticPad("sink")
	if sinkPad == nil {
		p.log.Error("stream-player: failed to get sink pad", "element", next.GetName())
		return
	}
	if sinkPad.IsLinked() {
		p.log.Debug("stream-player: sink pad already linked", "pad", srcPad.GetName())
		return
	}
	if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
		p.log.Error("stream-player: failed to link pads",
			"src_pad", srcPad.GetName(),
			"sink_pad", sinkPad.GetName(),
			"ret", ret,
		)
		return
	}
	p.log.Debug("stream-player: pads linked", "src_pad", srcPad.GetName(), "element", next.GetName())
}

// addRenderProbe records every buffer reaching the sink. The first buffer
// of a session also reports the negotiated video caps.
func (p *gstPipeline) addRenderProbe() error {
	pad := p.sink.GetStaticPad("sink")
	if pad == nil {
		return errors.New("video sink has no sink pad")
	}

	pad.AddProbe(gst.PadProbeTypeBuffer, func(pad *gst.Pad, info *gst.PadProbeInfo) gst.PadProbeReturn {
		p.frames.Record(time.Now())

		if p.sawFrame.CompareAndSwap(false, true) {
			if caps := pad.GetCurrentCaps(); caps != nil {
				if v, ok := parseVideoCaps(caps.String()); ok {
					p.emit(pipeline.Event{Kind: pipeline.EventVideoInfo, Video: v})
				}
			}
		}
		return gst.PadProbeOK
	})
	return nil
}

// SetWindow stores the handle and applies it once the sink exists (READY).
func (p *gstPipeline) SetWindow(handle uintptr) error {
	p.window = handle
	if p.requested == pipeline.StateNull {
		return nil
	}
	if err := setWindowHandle(p.sink, handle); err != nil {
		return err
	}
	expose(p.sink)
	return nil
}

func (p *gstPipeline) SetState(s pipeline.State) error {
	if p.requested == pipeline.StateNull && s >= pipeline.StatePaused && p.window != 0 {
		if err := p.pipeline.SetState(gst.StateReady); err != nil {
			return fmt.Errorf("failed to set pipeline to READY: %w", err)
		}
		if err := setWindowHandle(p.sink, p.window); err != nil {
			return err
		}
	}
	if s == pipeline.StateNull {
		p.sawFrame.Store(false)
		p.frames.Reset()
	}

	if err := p.pipeline.SetState(toGstState(s)); err != nil {
		return fmt.Errorf("failed to set pipeline to %s: %w", s, err)
	}
	p.requested = s
	return nil
}

// Seek jumps to position. Only non-live sources with a known duration
// are seekable.
func (p *gstPipeline) Seek(position time.Duration) error {
	if !p.seekable() {
		return pipeline.ErrNotSeekable
	}
	if !p.pipeline.SeekSimple(int64(position), gst.FormatTime, gst.SeekFlagFlush|gst.SeekFlagKeyUnit) {
		return errors.New("seek rejected by pipeline")
	}
	return nil
}

func (p *gstPipeline) seekable() bool {
	switch p.locator.Scheme {
	case "file", "http", "https":
	default:
		return false
	}
	ok, dur := p.pipeline.QueryDuration(gst.FormatTime)
	return ok && dur > 0
}

func (p *gstPipeline) Position() (time.Duration, time.Duration, bool) {
	ok, pos := p.pipeline.QueryPosition(gst.FormatTime)
	if !ok {
		return 0, 0, false
	}
	var dur time.Duration
	if ok, d := p.pipeline.QueryDuration(gst.FormatTime); ok && d > 0 {
		dur = time.Duration(d)
	}
	return time.Duration(pos), dur, true
}

func (p *gstPipeline) Events() <-chan pipeline.Event { return p.events }

func (p *gstPipeline) RenderStats() framestats.Stats { return p.frames.Snapshot() }

// Close brings the pipeline to NULL, stops the bus monitor and closes the
// event channel.
func (p *gstPipeline) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.quit)
		err = p.pipeline.SetState(gst.StateNull)
		p.requested = pipeline.StateNull
		p.window = 0

		p.cancel()
		<-p.done

		p.mu.Lock()
		p.closed = true
		close(p.events)
		p.mu.Unlock()

		p.log.Debug("stream-player: pipeline closed")
	})
	return err
}

// emit posts ev to the player. Progress events are dropped when the
// player is not keeping up; state, error and end-of-stream events wait
// for room until the pipeline is closed.
func (p *gstPipeline) emit(ev pipeline.Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}
	if droppable(ev.Kind) {
		select {
		case p.events <- ev:
		default:
			p.log.Warn("stream-player: pipeline event dropped", "kind", ev.Kind.String())
		}
		return
	}
	select {
	case p.events <- ev:
	case <-p.quit:
	}
}

func droppable(kind pipeline.EventKind) bool {
	switch kind {
	case pipeline.EventBuffering, pipeline.EventWarning, pipeline.EventVideoInfo:
		return true
	default:
		return false
	}
}

func toGstState(s pipeline.State) gst.State {
	switch s {
	case pipeline.StateReady:
		return gst.StateReady
	case pipeline.StatePaused:
		return gst.StatePaused
	case pipeline.StatePlaying:
		return gst.StatePlaying
	default:
		return gst.StateNull
	}
}

func fromGstState(s gst.State) (pipeline.State, bool) {
	switch s {
	case gst.StateNull:
		return pipeline.StateNull, true
	case gst.StateReady:
		return pipeline.StateReady, true
	case gst.StatePaused:
		return pipeline.StatePaused, true
	case gst.StatePlaying:
		return pipeline.StatePlaying, true
	default:
		return 0, false
	}
}
