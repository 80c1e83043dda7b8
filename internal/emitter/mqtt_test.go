package emitter

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	streamplayer "github.com/e7canasta/orion-care-sensor/modules/stream-player"
)

type fakeToken struct {
	err     error
	timeout bool
	done    chan struct{}
}

func newFakeToken(err error, timeout bool) *fakeToken {
	t := &fakeToken{err: err, timeout: timeout, done: make(chan struct{})}
	if !timeout {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool { return !t.timeout }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakePublisher struct {
	mu      sync.Mutex
	msgs    []published
	err     error
	timeout bool
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil && !p.timeout {
		p.msgs = append(p.msgs, published{topic: topic, qos: qos, payload: payload.([]byte)})
	}
	return newFakeToken(p.err, p.timeout)
}

func (p *fakePublisher) messages() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

func newConnected(t *testing.T, cfg Config) (*MQTTEmitter, *fakePublisher) {
	t.Helper()
	e, err := NewMQTTEmitter(cfg)
	require.NoError(t, err)
	pub := &fakePublisher{}
	e.pub = pub
	e.setConnected(true)
	return e, pub
}

func testEvent() streamplayer.Event {
	return streamplayer.Event{
		Handle: 0x100000001,
		Kind:   streamplayer.EventVideoInfo,
		State:  streamplayer.StatePlaying,
		Video:  streamplayer.VideoInfo{Width: 1920, Height: 1080, Framerate: 25, Format: "NV12"},
		Time:   time.UnixMilli(1700000000000),
	}
}

func TestNewMQTTEmitter_Defaults(t *testing.T) {
	e, err := NewMQTTEmitter(Config{Broker: "localhost:1883"})
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", e.cfg.Broker)
	assert.Contains(t, e.cfg.ClientID, "stream-player-")
	assert.Equal(t, "streamplayer/"+e.cfg.ClientID, e.cfg.Topic)

	e, err = NewMQTTEmitter(Config{Broker: "ssl://broker:8883", ClientID: "ward-3", Topic: "care/players/"})
	require.NoError(t, err)
	assert.Equal(t, "ssl://broker:8883", e.cfg.Broker)
	assert.Equal(t, "care/players", e.cfg.Topic)
}

func TestNewMQTTEmitter_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no broker", Config{}},
		{"qos", Config{Broker: "localhost:1883", QoS: 3}},
		{"encoding", Config{Broker: "localhost:1883", Encoding: "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMQTTEmitter(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestPublish_JSON(t *testing.T) {
	e, pub := newConnected(t, Config{Broker: "localhost:1883", Topic: "care/players", QoS: 1})

	require.NoError(t, e.Publish(testEvent()))

	msgs := pub.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "care/players/0x100000001/video_info", msgs[0].topic)
	assert.Equal(t, byte(1), msgs[0].qos)

	var m Message
	require.NoError(t, json.Unmarshal(msgs[0].payload, &m))
	assert.Equal(t, "0x100000001", m.Handle)
	assert.Equal(t, "playing", m.State)
	assert.Equal(t, 1920, m.Width)
	assert.Equal(t, int64(1700000000000), m.Timestamp)

	assert.Equal(t, uint64(1), e.Stats().Published["video_info"])
}

func TestPublish_MsgPack(t *testing.T) {
	e, pub := newConnected(t, Config{Broker: "localhost:1883", Encoding: "msgpack"})

	ev := testEvent()
	ev.Kind = streamplayer.EventError
	ev.Message = "stream unavailable: connection refused"
	require.NoError(t, e.Publish(ev))

	msgs := pub.messages()
	require.Len(t, msgs, 1)

	var m Message
	require.NoError(t, msgpack.Unmarshal(msgs[0].payload, &m))
	assert.Equal(t, "error", m.Kind)
	assert.Equal(t, "stream unavailable: connection refused", m.Message)
}

func TestPublish_Failures(t *testing.T) {
	e, err := NewMQTTEmitter(Config{Broker: "localhost:1883"})
	require.NoError(t, err)
	assert.Error(t, e.Publish(testEvent()), "not connected")

	e, pub := newConnected(t, Config{Broker: "localhost:1883"})
	pub.err = errors.New("broker rejected")
	assert.Error(t, e.Publish(testEvent()))

	pub.err = nil
	pub.timeout = true
	assert.Error(t, e.Publish(testEvent()))

	assert.Equal(t, uint64(2), e.Stats().Errors)
}

func TestRun_DrainsUntilClosed(t *testing.T) {
	e, pub := newConnected(t, Config{Broker: "localhost:1883"})

	events := make(chan streamplayer.Event, 4)
	done := make(chan struct{})
	go func() {
		e.Run(events)
		close(done)
	}()

	for _, kind := range []streamplayer.EventKind{
		streamplayer.EventStateChanged,
		streamplayer.EventBuffering,
		streamplayer.EventEndOfStream,
	} {
		ev := testEvent()
		ev.Kind = kind
		events <- ev
	}
	close(events)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after channel close")
	}
	assert.Len(t, pub.messages(), 3)
}
