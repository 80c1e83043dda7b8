package streamplayer

import (
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/pipeline"
)

// EventKind identifies a player event.
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventError
	EventWarning
	EventEndOfStream
	EventBuffering
	EventStreamStarted
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
	case EventEndOfStream:
		return "end_of_stream"
	case EventBuffering:
		return "buffering"
	case EventStreamStarted:
		return "stream_started"
	case EventVideoInfo:
		return "video_info"
	default:
		return "unknown"
	}
}

// Event is published to subscribers whenever a player changes state or
// its pipeline reports something noteworthy.
type Event struct {
	Handle  Handle
	Kind    EventKind
	State   PlaybackState // Observable state at publish time
	Percent int           // EventBuffering
	Video   VideoInfo     // EventVideoInfo
	Message string        // EventError, EventWarning
	Time    time.Time
}

// EventReceiver yields the latest event of a SubscribeLatest subscription.
type EventReceiver interface {
	// Receive blocks until an event is available; false after unsubscribe.
	Receive() (Event, bool)
	TryReceive() (Event, bool)
	Close()
}

func videoInfoFrom(v pipeline.VideoInfo) VideoInfo {
	return VideoInfo{Width: v.Width, Height: v.Height, Framerate: v.Framerate, Format: v.Format}
}

// publicEventKind maps backend events that are forwarded to subscribers.
func publicEventKind(k pipeline.EventKind) (EventKind, bool) {
	switch k {
	case pipeline.EventError:
		return EventError, true
	case pipeline.EventWarning:
		return EventWarning, true
	case pipeline.EventEOS:
		return EventEndOfStream, true
	case pipeline.EventBuffering:
		return EventBuffering, true
	case pipeline.EventStreamStart:
		return EventStreamStarted, true
	case pipeline.EventVideoInfo:
		return EventVideoInfo, true
	default:
		return 0, false
	}
}
