package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	streamplayer "github.com/e7canasta/orion-care-sensor/modules/stream-player"
	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/bootstrap"
)

func run(cmd *cobra.Command, args []string) error {
	window, err := parseWindow(flagWindow)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if flagDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flagDuration)
		defer cancel()
	}

	engine, err := bootstrap.NewEngine(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := engine.Close(shutdownCtx); err != nil {
			slog.Error("test-player: engine close failed", "error", err)
		}
	}()

	stopForwarding, err := bootstrap.StartEventForwarding(ctx, cfg, engine, slog.Default())
	if err != nil {
		return err
	}
	defer stopForwarding()

	if cfg.Metrics.Listen != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           newRouter(engine),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("test-player: serving metrics", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("test-player: metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	events := make(chan streamplayer.Event, 64)
	if err := engine.Subscribe("test-player", events); err != nil {
		return err
	}
	defer func() {
		_ = engine.Unsubscribe("test-player")
		close(events)
	}()
	go logEvents(events)

	h, err := engine.Create(flagURL)
	if err != nil {
		return err
	}
	if err := engine.Attach(h, streamplayer.RenderTarget(window)); err != nil {
		return err
	}

	fmt.Printf("Playing %s into window %#x (handle %s)\n", flagURL, window, h)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	if err := engine.Play(h); err != nil {
		return err
	}

	ticker := time.NewTicker(flagStatsInterval)
	defer ticker.Stop()
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			slog.Info("test-player: stopping", "uptime", time.Since(start).Round(time.Second))
			if err := engine.Stop(h); err != nil {
				slog.Warn("test-player: stop failed", "error", err)
			}
			printStats(engine, h, start)
			return engine.Destroy(h)

		case <-ticker.C:
			printStats(engine, h, start)
		}
	}
}

// logEvents runs until events is closed.
func logEvents(events <-chan streamplayer.Event) {
	for ev := range events {
		attrs := []any{"handle", ev.Handle, "state", ev.State}
		switch ev.Kind {
		case streamplayer.EventError:
			slog.Error("test-player: error", append(attrs, "message", ev.Message)...)
		case streamplayer.EventWarning:
			slog.Warn("test-player: warning", append(attrs, "message", ev.Message)...)
		case streamplayer.EventBuffering:
			slog.Debug("test-player: buffering", append(attrs, "percent", ev.Percent)...)
		case streamplayer.EventVideoInfo:
			slog.Info("test-player: video",
				append(attrs,
					"width", ev.Video.Width,
					"height", ev.Video.Height,
					"framerate", ev.Video.Framerate,
					"format", ev.Video.Format,
				)...)
		default:
			slog.Info("test-player: "+ev.Kind.String(), attrs...)
		}
	}
}

func printStats(engine *streamplayer.Engine, h streamplayer.Handle, start time.Time) {
	info, err := engine.Info(h)
	if err != nil {
		slog.Warn("test-player: info failed", "error", err)
		return
	}
	r := info.Render

	fmt.Printf("\n")
	fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
	fmt.Printf("│ Player Statistics (Uptime: %s)\n", time.Since(start).Round(time.Second))
	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	fmt.Printf("│ State:              %s\n", info.State)
	if info.Video.Width > 0 {
		fmt.Printf("│ Video:              %dx%d %s @ %.2f fps\n",
			info.Video.Width, info.Video.Height, info.Video.Format, info.Video.Framerate)
	}
	if info.Duration > 0 {
		fmt.Printf("│ Position:           %s / %s\n", info.Position.Round(time.Second), info.Duration.Round(time.Second))
	}
	fmt.Printf("│ Frames Rendered:    %6d frames\n", r.FramesRendered)
	fmt.Printf("│ FPS Mean:           %6.2f fps\n", r.FPSMean)
	fmt.Printf("│ FPS StdDev:         %6.2f fps\n", r.FPSStdDev)
	fmt.Printf("│ FPS Range:          %6.1f - %.1f fps\n", r.FPSMin, r.FPSMax)
	fmt.Printf("│ Jitter Mean:        %6.3f s\n", r.JitterMean)
	fmt.Printf("│ Jitter Max:         %6.3f s\n", r.JitterMax)
	fmt.Printf("│ Stable:             %6v\n", r.IsStable)
	if info.Buffering {
		fmt.Printf("│ Buffering:          yes\n")
	}
	fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")
}
