package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/config"
)

const version = "v0.1.0"

var (
	flagURL           string
	flagWindow        string
	flagConfig        string
	flagMetrics       string
	flagMQTT          string
	flagDuration      time.Duration
	flagStatsInterval time.Duration
	flagDebug         bool
)

// cfg holds the loaded configuration (defaults < config file < flags).
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:               "test-player",
	Short:             "Play a stream into a native window",
	Version:           version,
	Args:              cobra.NoArgs,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              run,
}

func init() {
	rootCmd.Flags().StringVarP(&flagURL, "url", "u", "", "Stream locator, e.g. rtsp://host/stream or testsrc://ball (required)")
	rootCmd.Flags().StringVarP(&flagWindow, "window", "w", "", "Native window handle, decimal or 0x-hex (required)")
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "YAML config file (default: $STREAMPLAYER_CONFIG)")
	rootCmd.Flags().StringVar(&flagMetrics, "metrics", "", "Serve /metrics and /players on this address, e.g. :9110")
	rootCmd.Flags().StringVar(&flagMQTT, "mqtt", "", "Forward player events to this MQTT broker, e.g. localhost:1883")
	rootCmd.Flags().DurationVarP(&flagDuration, "duration", "d", 0, "Stop after this long (0 = until Ctrl+C)")
	rootCmd.Flags().DurationVar(&flagStatsInterval, "stats-interval", 10*time.Second, "Interval between stats reports")
	rootCmd.Flags().BoolVarP(&flagDebug, "debug", "x", false, "Enable debug logging")

	_ = rootCmd.MarkFlagRequired("url")
	_ = rootCmd.MarkFlagRequired("window")
}

// loadConfig loads and merges configuration, then installs the logger.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	if flagConfig != "" {
		cfg, err = config.Load(flagConfig)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if flagDebug {
		cfg.Log.Level = "debug"
	}
	if flagMetrics != "" {
		cfg.Metrics.Listen = flagMetrics
	}
	if flagMQTT != "" {
		cfg.MQTT.Broker = flagMQTT
		if cfg.MQTT.Encoding == "" {
			cfg.MQTT.Encoding = "json"
		}
	}
	cfg.Log.Format = "text"

	slog.SetDefault(cfg.NewLogger(os.Stdout))
	return nil
}

func parseWindow(s string) (uintptr, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid window handle %q: %w", s, err)
	}
	if v == 0 {
		return 0, fmt.Errorf("window handle must not be 0")
	}
	return uintptr(v), nil
}
