// Package emitter forwards player events to an MQTT broker so that a
// remote monitor can follow every player of a process.
//
// Topic layout: <topic>/<handle>/<event kind>, e.g.
//
//	streamplayer/ward-3/0x100000001/state_changed
//
// Payloads are JSON or MessagePack encodings of Message.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	streamplayer "github.com/e7canasta/orion-care-sensor/modules/stream-player"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// Config contains MQTT broker settings
type Config struct {
	Broker   string // host:port or a full tcp://, ssl://, ws:// URL
	ClientID string // empty = "stream-player-<random>"
	Topic    string // empty = "streamplayer/<client id>"
	QoS      byte
	Encoding string // json (default) or msgpack
	Logger   *slog.Logger
}

// Message is the payload published for every event.
type Message struct {
	Handle    string  `json:"handle" msgpack:"handle"`
	Kind      string  `json:"kind" msgpack:"kind"`
	State     string  `json:"state" msgpack:"state"`
	Percent   int     `json:"percent,omitempty" msgpack:"percent,omitempty"`
	Width     int     `json:"width,omitempty" msgpack:"width,omitempty"`
	Height    int     `json:"height,omitempty" msgpack:"height,omitempty"`
	Framerate float64 `json:"framerate,omitempty" msgpack:"framerate,omitempty"`
	Format    string  `json:"format,omitempty" msgpack:"format,omitempty"`
	Message   string  `json:"message,omitempty" msgpack:"message,omitempty"`
	Timestamp int64   `json:"ts" msgpack:"ts"` // Unix milliseconds
}

// publisher is the part of mqtt.Client the emitter publishes through.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTEmitter publishes player events to an MQTT broker
type MQTTEmitter struct {
	cfg    Config
	log    *slog.Logger
	client mqtt.Client
	pub    publisher
	encode func(v interface{}) ([]byte, error)

	mu        sync.RWMutex
	published map[string]uint64 // count per event kind
	errors    uint64
	connected bool
}

// NewMQTTEmitter validates cfg. Call Connect before publishing.
func NewMQTTEmitter(cfg Config) (*MQTTEmitter, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker is required")
	}
	if !strings.Contains(cfg.Broker, "://") {
		cfg.Broker = "tcp://" + cfg.Broker
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "stream-player-" + uuid.NewString()[:8]
	}
	if cfg.Topic == "" {
		cfg.Topic = "streamplayer/" + cfg.ClientID
	}
	cfg.Topic = strings.TrimSuffix(cfg.Topic, "/")
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", cfg.QoS)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	e := &MQTTEmitter{
		cfg:       cfg,
		log:       cfg.Logger.With("broker", cfg.Broker, "client_id", cfg.ClientID),
		published: make(map[string]uint64),
	}

	switch cfg.Encoding {
	case "", "json":
		e.encode = json.Marshal
	case "msgpack":
		e.encode = msgpack.Marshal
	default:
		return nil, fmt.Errorf("mqtt encoding must be json or msgpack, got %q", cfg.Encoding)
	}
	return e, nil
}

// Connect establishes connection to the MQTT broker
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(e.cfg.Broker)
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		e.log.Info("stream-player: mqtt connection established")
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		e.log.Warn("stream-player: mqtt connection lost, will auto-reconnect", "error", err)
	}

	e.client = mqtt.NewClient(opts)
	e.pub = e.client

	e.log.Info("stream-player: connecting to mqtt broker")

	token := e.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("mqtt connection: %w", ctx.Err())
	case <-time.After(connectTimeout):
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.setConnected(true)
	return nil
}

// Publish publishes one event to <topic>/<handle>/<kind>.
func (e *MQTTEmitter) Publish(ev streamplayer.Event) error {
	if !e.isConnected() {
		e.countError()
		return fmt.Errorf("mqtt not connected")
	}

	kind := ev.Kind.String()
	topic := fmt.Sprintf("%s/%s/%s", e.cfg.Topic, ev.Handle, kind)

	payload, err := e.encode(newMessage(ev))
	if err != nil {
		e.countError()
		return fmt.Errorf("failed to encode event: %w", err)
	}

	token := e.pub.Publish(topic, e.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		e.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[kind]++
	e.mu.Unlock()

	e.log.Debug("stream-player: event published", "topic", topic, "size", len(payload))
	return nil
}

// Run publishes events until the channel is closed.
func (e *MQTTEmitter) Run(events <-chan streamplayer.Event) {
	for ev := range events {
		if err := e.Publish(ev); err != nil {
			e.log.Debug("stream-player: event not published", "kind", ev.Kind, "error", err)
		}
	}
}

// Disconnect closes the MQTT connection
func (e *MQTTEmitter) Disconnect() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
		e.log.Info("stream-player: mqtt disconnected")
	}
	e.setConnected(false)
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{Connected: e.connected, Published: published, Errors: e.errors}
}

func newMessage(ev streamplayer.Event) Message {
	return Message{
		Handle:    ev.Handle.String(),
		Kind:      ev.Kind.String(),
		State:     ev.State.String(),
		Percent:   ev.Percent,
		Width:     ev.Video.Width,
		Height:    ev.Video.Height,
		Framerate: ev.Video.Framerate,
		Format:    ev.Video.Format,
		Message:   ev.Message,
		Timestamp: ev.Time.UnixMilli(),
	}
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
