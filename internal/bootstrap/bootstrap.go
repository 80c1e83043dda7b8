// Package bootstrap wires configuration, logging, the GStreamer backend,
// the engine and optional MQTT event forwarding for the shared library and
// the test player.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	streamplayer "github.com/e7canasta/orion-care-sensor/modules/stream-player"
	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/emitter"
	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/gstreamer"
)

const (
	forwarderID    = "mqtt-forwarder"
	eventQueueSize = 256
)

// BackendConfig converts the gstreamer section.
func BackendConfig(cfg *config.Config, logger *slog.Logger) gstreamer.Config {
	g := cfg.GStreamer
	return gstreamer.Config{
		VideoSink:  g.VideoSink,
		Latency:    time.Duration(g.LatencyMS) * time.Millisecond,
		Protocols:  g.Protocols,
		TCPTimeout: g.TCPTimeout,
		Retry:      g.Retry,
		Logger:     logger,
	}
}

// NewEngine initializes GStreamer and returns an engine using it.
func NewEngine(cfg *config.Config, logger *slog.Logger) (*streamplayer.Engine, error) {
	backend, err := gstreamer.NewBackend(BackendConfig(cfg, logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create gstreamer backend: %w", err)
	}

	engine, err := streamplayer.New(cfg.EngineConfig(logger), backend)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return engine, nil
}

// EmitterConfig converts the mqtt section.
func EmitterConfig(cfg *config.Config, logger *slog.Logger) emitter.Config {
	m := cfg.MQTT
	return emitter.Config{
		Broker:   m.Broker,
		ClientID: m.ClientID,
		Topic:    m.Topic,
		QoS:      m.QoS,
		Encoding: m.Encoding,
		Logger:   logger,
	}
}

// StartEventForwarding subscribes to engine events and publishes them to
// the configured MQTT broker. It returns a no-op stop when forwarding is
// disabled. stop unsubscribes, drains pending events and disconnects.
func StartEventForwarding(ctx context.Context, cfg *config.Config, engine *streamplayer.Engine, logger *slog.Logger) (stop func(), err error) {
	if cfg.MQTT.Broker == "" {
		return func() {}, nil
	}

	em, err := emitter.NewMQTTEmitter(EmitterConfig(cfg, logger))
	if err != nil {
		return nil, err
	}
	if err := em.Connect(ctx); err != nil {
		return nil, err
	}

	events := make(chan streamplayer.Event, eventQueueSize)
	if err := engine.Subscribe(forwarderID, events); err != nil {
		em.Disconnect()
		return nil, fmt.Errorf("failed to subscribe event forwarder: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		em.Run(events)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			// fails only when the engine already closed the bus
			_ = engine.Unsubscribe(forwarderID)
			close(events)
			<-done
			em.Disconnect()
		})
	}, nil
}
