package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Acquisition loop metrics
	loopIterations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signbridge_loop_iterations_total",
		Help: "Total number of acquisition loop iterations that produced a prediction",
	})

	loopFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signbridge_loop_failures_total",
		Help: "Total number of per-frame failures tolerated by the acquisition loop",
	}, []string{"stage"}) // stage: "frame" or "predict"

	loopState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "signbridge_loop_state",
		Help: "Current acquisition loop state (1 for the active state)",
	}, []string{"state"})

	predictLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "signbridge_predict_latency_seconds",
		Help:    "Per-frame inference latency in seconds",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	})

	modelLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signbridge_model_loads_total",
		Help: "Total number of model binding loads",
	}, []string{"status"})

	// Text output metrics
	stabilizedOutputs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signbridge_stabilized_outputs_total",
		Help: "Total number of stabilized prediction labels published",
	})

	// Pose lookup metrics
	poseFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signbridge_pose_fetches_total",
		Help: "Total number of remote pose lookups",
	}, []string{"status"}) // status: "ok", "error", "discarded"

	poseFetchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "signbridge_pose_fetch_latency_seconds",
		Help:    "Remote pose lookup latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	artifactsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signbridge_artifacts_live",
		Help: "Number of artifact handles that have not been revoked",
	})

	// Mode metrics
	modeTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signbridge_mode_transitions_total",
		Help: "Total number of mode transitions",
	}, []string{"kind"}) // kind: "direction" or "variant"

	// Plugin sink metrics
	pluginDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signbridge_plugin_deliveries_total",
		Help: "Total number of translations handed to plugin sinks",
	}, []string{"status"}) // status: "ok", "error", "dropped"
)

var loopStates = []string{"idle", "initializing", "running", "error"}

// RecordIteration records a completed loop iteration and its inference latency.
func RecordIteration(latency time.Duration) {
	loopIterations.Inc()
	predictLatency.Observe(latency.Seconds())
}

// RecordLoopFailure records a tolerated per-frame failure.
func RecordLoopFailure(stage string) {
	loopFailures.WithLabelValues(stage).Inc()
}

// SetLoopState marks state as the active loop state.
func SetLoopState(state string) {
	for _, s := range loopStates {
		if s == state {
			loopState.WithLabelValues(s).Set(1)
		} else {
			loopState.WithLabelValues(s).Set(0)
		}
	}
}

// RecordModelLoad records a model binding load outcome.
func RecordModelLoad(err error) {
	if err != nil {
		modelLoads.WithLabelValues("error").Inc()
		return
	}
	modelLoads.WithLabelValues("ok").Inc()
}

// RecordStabilized records a stabilized label.
func RecordStabilized() {
	stabilizedOutputs.Inc()
}

// RecordPoseFetch records a pose lookup outcome and latency.
func RecordPoseFetch(status string, latency time.Duration) {
	poseFetches.WithLabelValues(status).Inc()
	if status != "discarded" {
		poseFetchLatency.Observe(latency.Seconds())
	}
}

// ArtifactInstalled increments the live artifact gauge.
func ArtifactInstalled() {
	artifactsLive.Inc()
}

// ArtifactRevoked decrements the live artifact gauge.
func ArtifactRevoked() {
	artifactsLive.Dec()
}

// RecordModeTransition records a direction or variant toggle.
func RecordModeTransition(kind string) {
	modeTransitions.WithLabelValues(kind).Inc()
}

// RecordPluginDelivery records a plugin sink outcome.
func RecordPluginDelivery(status string) {
	pluginDeliveries.WithLabelValues(status).Inc()
}
