package config

import (
	"fmt"
	"strings"
	"time"

	streamplayer "github.com/e7canasta/orion-care-sensor/modules/stream-player"
)

// Validate checks the configuration and fills defaults for unset fields
func Validate(cfg *Config) error {
	if err := validateEngine(&cfg.Engine); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := validateGStreamer(&cfg.GStreamer); err != nil {
		return fmt.Errorf("gstreamer: %w", err)
	}

	if err := validateMQTT(&cfg.MQTT); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if _, err := parseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Log.Format {
	case "":
		cfg.Log.Format = "json"
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", cfg.Log.Format)
	}
	return nil
}

func validateEngine(e *EngineConfig) error {
	d := streamplayer.DefaultConfig()

	setDuration(&e.ControlTimeout, d.ControlTimeout)
	setDuration(&e.InitTimeout, d.InitTimeout)
	setDuration(&e.ConnectTimeout, d.ConnectTimeout)
	setDuration(&e.StateTimeout, d.StateTimeout)
	setDuration(&e.TeardownWarn, d.TeardownWarn)
	setDuration(&e.RetryDelay, d.RetryDelay)
	setDuration(&e.MaxRetryDelay, d.MaxRetryDelay)

	if e.ConnectRetries == nil {
		retries := d.ConnectRetries
		e.ConnectRetries = &retries
	}
	if *e.ConnectRetries < 0 {
		return fmt.Errorf("connect_retries must be >= 0, got %d", *e.ConnectRetries)
	}
	if len(e.AllowedSchemes) == 0 {
		e.AllowedSchemes = append([]string(nil), d.AllowedSchemes...)
	}
	for i, s := range e.AllowedSchemes {
		e.AllowedSchemes[i] = strings.ToLower(strings.TrimSpace(s))
	}

	// same rules the engine enforces at construction
	cfg := streamplayer.Config{
		ControlTimeout: e.ControlTimeout,
		InitTimeout:    e.InitTimeout,
		ConnectTimeout: e.ConnectTimeout,
		StateTimeout:   e.StateTimeout,
		TeardownWarn:   e.TeardownWarn,
		ConnectRetries: *e.ConnectRetries,
		RetryDelay:     e.RetryDelay,
		MaxRetryDelay:  e.MaxRetryDelay,
		AllowedSchemes: e.AllowedSchemes,
	}
	return cfg.Validate()
}

func validateGStreamer(g *GStreamerConfig) error {
	if g.LatencyMS == 0 {
		g.LatencyMS = 100
	}
	if g.LatencyMS < 0 {
		return fmt.Errorf("latency_ms must be > 0, got %d", g.LatencyMS)
	}
	if g.Protocols == "" {
		g.Protocols = "tcp+udp+http"
	}
	for _, p := range strings.FieldsFunc(strings.ToLower(g.Protocols), func(r rune) bool { return r == '+' || r == ',' }) {
		switch strings.TrimSpace(p) {
		case "tcp", "udp", "udp-mcast", "http":
		default:
			return fmt.Errorf("protocols: unknown transport %q", p)
		}
	}
	setDuration(&g.TCPTimeout, 5*time.Second)
	if g.Retry == 0 {
		g.Retry = 5
	}
	return nil
}

func validateMQTT(m *MQTTConfig) error {
	if m.Broker == "" {
		return nil
	}
	if m.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2, got %d", m.QoS)
	}
	switch m.Encoding {
	case "":
		m.Encoding = "json"
	case "json", "msgpack":
	default:
		return fmt.Errorf("encoding must be json or msgpack, got %q", m.Encoding)
	}
	return nil
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}
