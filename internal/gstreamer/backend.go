// Package gstreamer implements pipeline.Backend on GStreamer (go-gst).
//
// Pipeline shapes:
//
//	rtsp, rtsps:  rtspsrc → decodebin → queue → videoconvert → videosink
//	testsrc:      videotestsrc → queue → videoconvert → videosink
//	other:        uridecodebin → queue → videoconvert → videosink
//
// The video sink must implement GstVideoOverlay (or be a bin holding one)
// so that it renders into a caller-owned native window.
package gstreamer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/pipeline"
)

// Config configures pipelines built by the backend.
type Config struct {
	VideoSink  string        // Sink element factory (default: platform overlay sink)
	Latency    time.Duration // rtspsrc jitter buffer (default: 100ms)
	Protocols  string        // rtspsrc lower transports, e.g. "tcp" or "udp+tcp" (default: tcp+udp+http)
	TCPTimeout time.Duration // rtspsrc tcp-timeout (default: 5s)
	Retry      uint          // rtspsrc UDP retries before TCP fallback (default: 5)
	Logger     *slog.Logger
}

// DefaultConfig returns the backend defaults for the current platform.
func DefaultConfig() Config {
	return Config{
		VideoSink:  defaultVideoSink(runtime.GOOS),
		Latency:    100 * time.Millisecond,
		Protocols:  "tcp+udp+http",
		TCPTimeout: 5 * time.Second,
		Retry:      5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.VideoSink == "" {
		c.VideoSink = d.VideoSink
	}
	if c.Latency == 0 {
		c.Latency = d.Latency
	}
	if c.Protocols == "" {
		c.Protocols = d.Protocols
	}
	if c.TCPTimeout == 0 {
		c.TCPTimeout = d.TCPTimeout
	}
	if c.Retry == 0 {
		c.Retry = d.Retry
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Backend builds GStreamer pipelines.
type Backend struct {
	cfg       Config
	protocols int
}

var initOnce sync.Once

// NewBackend initializes GStreamer and verifies that the configured video
// sink can be created.
func NewBackend(cfg Config) (*Backend, error) {
	cfg = cfg.withDefaults()

	protocols, err := parseProtocols(cfg.Protocols)
	if err != nil {
		return nil, err
	}
	if err := checkGStreamerAvailable(cfg.VideoSink); err != nil {
		return nil, fmt.Errorf("stream-player: GStreamer not available: %w", err)
	}

	cfg.Logger.Info("stream-player: gstreamer backend ready",
		"video_sink", cfg.VideoSink,
		"protocols", cfg.Protocols,
		"latency", cfg.Latency,
	)
	return &Backend{cfg: cfg, protocols: protocols}, nil
}

func (b *Backend) Name() string { return "gstreamer" }

// Open builds (but does not start) the pipeline for url.
func (b *Backend) Open(ctx context.Context, url string) (pipeline.Pipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := newPipeline(ctx, b.cfg, b.protocols, url)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// checkGStreamerAvailable is a fail-fast validation run at construction.
func checkGStreamerAvailable(sink string) error {
	initOnce.Do(func() { gst.Init(nil) })

	for _, factory := range []string{"fakesrc", "videoconvert", sink} {
		elem, err := gst.NewElement(factory)
		if err != nil {
			return fmt.Errorf("element %q: %w", factory, err)
		}
		elem.SetState(gst.StateNull)
	}
	return nil
}
