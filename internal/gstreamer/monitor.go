package gstreamer

import (
	"context"
	"errors"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/pipeline"
)

// monitor polls the pipeline bus and turns messages into pipeline events
// until ctx is cancelled.
func (p *gstPipeline) monitor(ctx context.Context) {
	defer close(p.done)

	bus := p.pipeline.GetPipelineBus()
	for {
		select {
		case <-ctx.Done():
			p.log.Debug("stream-player: context cancelled, stopping pipeline monitor")
			return

		default:
			// short timeout for responsive shutdown
			msg := bus.TimedPop(50 * time.Millisecond)
			if msg == nil {
				continue
			}
			p.handleMessage(msg)
		}
	}
}

func (p *gstPipeline) handleMessage(msg *gst.Message) {
	switch msg.Type() {
	case gst.MessageEOS:
		p.emit(pipeline.Event{Kind: pipeline.EventEOS})

	case gst.MessageError:
		gerr := msg.ParseError()
		if gerr == nil {
			return
		}
		p.emit(pipeline.Event{
			Kind:     pipeline.EventError,
			Err:      errors.New(gerr.Error()),
			Debug:    gerr.DebugString(),
			Category: classifyGError(gerr),
		})

	case gst.MessageWarning:
		gerr := msg.ParseWarning()
		if gerr == nil {
			return
		}
		p.emit(pipeline.Event{
			Kind:  pipeline.EventWarning,
			Err:   errors.New(gerr.Error()),
			Debug: gerr.DebugString(),
		})

	case gst.MessageStateChanged:
		if msg.Source() != p.pipeline.GetName() {
			return
		}
		old, state := msg.ParseStateChanged()
		p.log.Debug("stream-player: pipeline state changed", "from", old, "to", state)
		if s, ok := fromGstState(state); ok {
			p.emit(pipeline.Event{Kind: pipeline.EventStateChanged, State: s})
		}

	case gst.MessageBuffering:
		p.emit(pipeline.Event{Kind: pipeline.EventBuffering, Percent: msg.ParseBuffering()})

	case gst.MessageStreamStart:
		p.emit(pipeline.Event{Kind: pipeline.EventStreamStart})
	}
}
