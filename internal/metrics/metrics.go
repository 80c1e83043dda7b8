// Package metrics provides Prometheus metrics for the stream player.
//
// Labels are bounded enums (operation, result, error kind, event kind);
// handles and URLs never become label values.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PlayersLive tracks players between a successful create and destroy.
	PlayersLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamplayer_players_live",
		Help: "Current number of live player instances.",
	})

	// PlayersPlaying tracks players whose observable state is playing.
	PlayersPlaying = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamplayer_players_playing",
		Help: "Current number of players in the playing state.",
	})

	// ControlOpsTotal counts control operations by operation and result.
	ControlOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamplayer_control_ops_total",
		Help: "Total number of control operations, by operation and result (ok or error kind).",
	}, []string{"op", "result"})

	// ControlDuration observes how long control operations block the caller.
	ControlDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "streamplayer_control_duration_seconds",
		Help:    "Time a control operation blocked its caller, by operation.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"op"})

	// ErrorsTotal counts recorded errors by kind.
	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamplayer_errors_total",
		Help: "Total number of errors written to the error channel, by kind.",
	}, []string{"kind"})

	// PipelineEventsTotal counts backend events by kind.
	PipelineEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamplayer_pipeline_events_total",
		Help: "Total number of pipeline events handled, by event kind.",
	}, []string{"kind"})

	// PipelineErrorsTotal counts backend errors by classification.
	PipelineErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamplayer_pipeline_errors_total",
		Help: "Total number of pipeline errors, by category (network, codec, auth, unknown).",
	}, []string{"category"})

	// ConnectRetriesTotal counts connect retries during play.
	ConnectRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamplayer_connect_retries_total",
		Help: "Total number of stream connect retries.",
	})

	// TeardownDuration observes destroy latency.
	TeardownDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streamplayer_teardown_duration_seconds",
		Help:    "Time from destroy request to teardown completion.",
		Buckets: prometheus.DefBuckets,
	})

	// ABIMisuseTotal counts rejected calls across the C boundary.
	ABIMisuseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamplayer_abi_misuse_total",
		Help: "Total number of rejected caller misuses at the C boundary, by reason.",
	}, []string{"reason"})
)

// RecordControl records one control operation.
func RecordControl(op, result string, elapsed time.Duration) {
	if result == "" {
		result = "ok"
	}
	ControlOpsTotal.WithLabelValues(op, result).Inc()
	ControlDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// RecordError records an error of the given kind.
func RecordError(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	ErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordPipelineEvent records a backend event.
func RecordPipelineEvent(kind string) {
	PipelineEventsTotal.WithLabelValues(kind).Inc()
}

// RecordPipelineError records a classified backend error.
func RecordPipelineError(category string) {
	PipelineErrorsTotal.WithLabelValues(category).Inc()
}

// RecordMisuse records a rejected boundary call.
func RecordMisuse(reason string) {
	ABIMisuseTotal.WithLabelValues(reason).Inc()
}
