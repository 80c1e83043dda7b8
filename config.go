package streamplayer

import (
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"
)

// DefaultSchemes are the stream locator schemes accepted by Create.
var DefaultSchemes = []string{"rtsp", "rtsps", "rtmp", "http", "https", "udp", "srt", "file", "testsrc"}

// Config controls engine timing and input validation.
type Config struct {
	ControlTimeout time.Duration // Max time attach/play/pause/stop/seek block the caller (default: 10s)
	InitTimeout    time.Duration // Max time create waits for the player pipeline (default: 5s)
	ConnectTimeout time.Duration // Budget for play to reach PLAYING, retries included (default: 8s)
	StateTimeout   time.Duration // Budget for pause/resume acknowledgments (default: 5s)
	TeardownWarn   time.Duration // Destroy logs a warning past this (default: 3s)

	ConnectRetries int           // Retries after a fast connect failure (default: 2)
	RetryDelay     time.Duration // Initial retry delay (default: 500ms)
	MaxRetryDelay  time.Duration // Retry delay cap (default: 2s)

	AllowedSchemes []string // Accepted locator schemes (default: DefaultSchemes)

	Logger *slog.Logger // Defaults to slog.Default()
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		ControlTimeout: 10 * time.Second,
		InitTimeout:    5 * time.Second,
		ConnectTimeout: 8 * time.Second,
		StateTimeout:   5 * time.Second,
		TeardownWarn:   3 * time.Second,
		ConnectRetries: 2,
		RetryDelay:     500 * time.Millisecond,
		MaxRetryDelay:  2 * time.Second,
		AllowedSchemes: slices.Clone(DefaultSchemes),
	}
}

// withDefaults fills zero-valued fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ControlTimeout == 0 {
		c.ControlTimeout = d.ControlTimeout
	}
	if c.InitTimeout == 0 {
		c.InitTimeout = d.InitTimeout
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.StateTimeout == 0 {
		c.StateTimeout = d.StateTimeout
	}
	if c.TeardownWarn == 0 {
		c.TeardownWarn = d.TeardownWarn
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.MaxRetryDelay == 0 {
		c.MaxRetryDelay = d.MaxRetryDelay
	}
	if len(c.AllowedSchemes) == 0 {
		c.AllowedSchemes = d.AllowedSchemes
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Validate checks the configuration after defaults are applied.
func (c Config) Validate() error {
	if c.ControlTimeout < 0 || c.InitTimeout < 0 || c.ConnectTimeout < 0 ||
		c.StateTimeout < 0 || c.TeardownWarn < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.ConnectTimeout > c.ControlTimeout {
		return fmt.Errorf("connect timeout (%s) must not exceed control timeout (%s)",
			c.ConnectTimeout, c.ControlTimeout)
	}
	if c.StateTimeout > c.ControlTimeout {
		return fmt.Errorf("state timeout (%s) must not exceed control timeout (%s)",
			c.StateTimeout, c.ControlTimeout)
	}
	if c.ConnectRetries < 0 {
		return fmt.Errorf("connect retries must not be negative, got %d", c.ConnectRetries)
	}
	if c.RetryDelay < 0 || c.MaxRetryDelay < c.RetryDelay {
		return fmt.Errorf("invalid retry delays: initial %s, max %s", c.RetryDelay, c.MaxRetryDelay)
	}
	for _, s := range c.AllowedSchemes {
		if s == "" || s != strings.ToLower(s) {
			return fmt.Errorf("invalid scheme %q: must be non-empty lowercase", s)
		}
	}
	return nil
}

// ValidateLocator checks that raw is a stream locator the engine accepts:
// CheckLocator passes and the scheme is in allowed.
func ValidateLocator(raw string, allowed []string) error {
	scheme, err := parseLocator(raw)
	if err != nil {
		return err
	}
	if !slices.Contains(allowed, scheme) {
		return fmt.Errorf("unsupported scheme %q", scheme)
	}
	return nil
}

// CheckLocator validates the shape of raw without consulting any engine
// configuration, so it can run before an engine exists.
//
// Rules:
//   - non-empty, no control characters or quotes
//   - parses as a URL with a scheme
//   - network schemes carry a host; file:// carries a path
//   - testsrc:// optionally names a test pattern as host
func CheckLocator(raw string) error {
	_, err := parseLocator(raw)
	return err
}

func parseLocator(raw string) (scheme string, err error) {
	if raw == "" {
		return "", fmt.Errorf("url is empty")
	}
	if strings.ContainsFunc(raw, func(r rune) bool {
		return r < 0x20 || r == 0x7f || r == '"' || r == '\''
	}) {
		return "", fmt.Errorf("url contains control characters or quotes")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("malformed url: %w", err)
	}

	scheme = strings.ToLower(u.Scheme)
	if scheme == "" {
		return "", fmt.Errorf("url has no scheme")
	}

	switch scheme {
	case "file":
		if u.Path == "" {
			return "", fmt.Errorf("file url has no path")
		}
	case "testsrc":
	default:
		if u.Hostname() == "" {
			return "", fmt.Errorf("%s url has no host", scheme)
		}
	}
	return scheme, nil
}

// redactLocator strips credentials for logging.
func redactLocator(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}
