package gstreamer

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/pipeline"
)

// eventsOnly is a pipeline with just the event plumbing set up.
func eventsOnly(size int) *gstPipeline {
	return &gstPipeline{
		log:    slog.New(slog.DiscardHandler),
		events: make(chan pipeline.Event, size),
		quit:   make(chan struct{}),
	}
}

func TestDroppable(t *testing.T) {
	tests := []struct {
		kind pipeline.EventKind
		want bool
	}{
		{pipeline.EventBuffering, true},
		{pipeline.EventWarning, true},
		{pipeline.EventVideoInfo, true},
		{pipeline.EventStateChanged, false},
		{pipeline.EventError, false},
		{pipeline.EventEOS, false},
		{pipeline.EventStreamStart, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, droppable(tt.kind), tt.kind.String())
	}
}

func TestEmit_FullChannelDropsProgressOnly(t *testing.T) {
	p := eventsOnly(1)
	p.emit(pipeline.Event{Kind: pipeline.EventBuffering, Percent: 10})

	// returns at once, event lost
	p.emit(pipeline.Event{Kind: pipeline.EventWarning})
	require.Len(t, p.events, 1)

	sent := make(chan struct{})
	go func() {
		p.emit(pipeline.Event{Kind: pipeline.EventEOS})
		close(sent)
	}()

	select {
	case <-sent:
		t.Fatal("end of stream was not held back by a full channel")
	case <-time.After(50 * time.Millisecond):
	}

	assert.Equal(t, pipeline.EventBuffering, (<-p.events).Kind)
	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("end of stream not delivered once there was room")
	}
	assert.Equal(t, pipeline.EventEOS, (<-p.events).Kind)
}

func TestEmit_QuitReleasesBlockedSend(t *testing.T) {
	p := eventsOnly(1)
	p.emit(pipeline.Event{Kind: pipeline.EventStateChanged, State: pipeline.StatePaused})

	sent := make(chan struct{})
	go func() {
		p.emit(pipeline.Event{Kind: pipeline.EventError})
		close(sent)
	}()

	close(p.quit)
	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("blocked emit not released on close")
	}
	assert.Len(t, p.events, 1)
}
