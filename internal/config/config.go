package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	streamplayer "github.com/e7canasta/orion-care-sensor/modules/stream-player"
)

// Environment variables read by LoadFromEnv.
const (
	EnvConfigPath = "STREAMPLAYER_CONFIG"
	EnvLogLevel   = "STREAMPLAYER_LOG_LEVEL"
)

// Config represents the complete stream-player configuration
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	GStreamer GStreamerConfig `yaml:"gstreamer"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

// EngineConfig contains player control settings
type EngineConfig struct {
	ControlTimeout time.Duration `yaml:"control_timeout"`
	InitTimeout    time.Duration `yaml:"init_timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	StateTimeout   time.Duration `yaml:"state_timeout"`
	TeardownWarn   time.Duration `yaml:"teardown_warn"`
	ConnectRetries *int          `yaml:"connect_retries"` // nil = default, 0 disables retries
	RetryDelay     time.Duration `yaml:"retry_delay"`
	MaxRetryDelay  time.Duration `yaml:"max_retry_delay"`
	AllowedSchemes []string      `yaml:"allowed_schemes"`
}

// GStreamerConfig contains pipeline settings
type GStreamerConfig struct {
	VideoSink  string        `yaml:"video_sink"` // empty = platform default
	LatencyMS  int           `yaml:"latency_ms"`
	Protocols  string        `yaml:"protocols"` // tcp, udp, http joined with '+'
	TCPTimeout time.Duration `yaml:"tcp_timeout"`
	Retry      uint          `yaml:"retry"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MetricsConfig contains the optional metrics endpoint
type MetricsConfig struct {
	Listen string `yaml:"listen"` // e.g. ":9110"; empty disables
}

// MQTTConfig contains the optional event forwarding to an MQTT broker
type MQTTConfig struct {
	Broker   string `yaml:"broker"` // empty disables forwarding
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
	Encoding string `yaml:"encoding"` // json, msgpack
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	_ = Validate(cfg)
	return cfg
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates YAML configuration data
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// LoadFromEnv loads the file named by STREAMPLAYER_CONFIG (defaults when
// unset) and applies STREAMPLAYER_LOG_LEVEL.
func LoadFromEnv() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(EnvConfigPath); path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, fmt.Errorf("%s=%s: %w", EnvConfigPath, path, err)
		}
		cfg = loaded
	}

	if level := os.Getenv(EnvLogLevel); level != "" {
		if _, err := parseLevel(level); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
		cfg.Log.Level = strings.ToLower(level)
	}
	return cfg, nil
}

// EngineConfig converts to the engine configuration.
func (c *Config) EngineConfig(logger *slog.Logger) streamplayer.Config {
	e := c.Engine
	retries := 0
	if e.ConnectRetries != nil {
		retries = *e.ConnectRetries
	}
	return streamplayer.Config{
		ControlTimeout: e.ControlTimeout,
		InitTimeout:    e.InitTimeout,
		ConnectTimeout: e.ConnectTimeout,
		StateTimeout:   e.StateTimeout,
		TeardownWarn:   e.TeardownWarn,
		ConnectRetries: retries,
		RetryDelay:     e.RetryDelay,
		MaxRetryDelay:  e.MaxRetryDelay,
		AllowedSchemes: append([]string(nil), e.AllowedSchemes...),
		Logger:         logger,
	}
}

// NewLogger builds the slog logger described by the log section.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if c.Log.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
