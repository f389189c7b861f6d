// Package observability carries the pipeline's structured logging and
// metrics concerns: per-stage throughput and latency, error
// rates by taxonomy kind, and circuit-breaker state transitions. Logging
// itself lives in internal/platform/logger; this package is the
// prometheus/client_golang side.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every counter/histogram/gauge the pipeline exports. One
// instance is constructed at startup and threaded through the scheduler,
// resilient call layer, and supervisor.
type Metrics struct {
	StageAttempts   *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	StageErrors     *prometheus.CounterVec
	QueueDepth      *prometheus.GaugeVec
	CircuitState    *prometheus.GaugeVec
	ItemsPublished  prometheus.Counter
	ItemsFailed     prometheus.Counter
	ExternalLatency *prometheus.HistogramVec
}

// NewMetrics registers every collector against reg. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated from the global default
// registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StageAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contentpipe",
			Name:      "stage_attempts_total",
			Help:      "Stage executions attempted, labeled by stage and outcome.",
		}, []string{"stage", "outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "contentpipe",
			Name:      "stage_duration_seconds",
			Help:      "Stage execution wall time.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"stage"}),
		StageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contentpipe",
			Name:      "stage_errors_total",
			Help:      "Stage failures, labeled by stage and classified error kind.",
		}, []string{"stage", "kind"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "contentpipe",
			Name:      "queue_depth",
			Help:      "Items currently queued per stage.",
		}, []string{"stage"}),
		CircuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "contentpipe",
			Name:      "circuit_breaker_state",
			Help:      "0=closed 1=half_open 2=open, labeled by service and operation class.",
		}, []string{"service", "class"}),
		ItemsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "contentpipe",
			Name:      "items_published_total",
			Help:      "Items that reached the published terminal state.",
		}),
		ItemsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "contentpipe",
			Name:      "items_failed_total",
			Help:      "Items that reached a failed(stage) terminal state.",
		}),
		ExternalLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "contentpipe",
			Name:      "external_call_latency_seconds",
			Help:      "Resilient call layer outbound latency, labeled by service and operation class.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "class", "outcome"}),
	}
	reg.MustRegister(
		m.StageAttempts, m.StageDuration, m.StageErrors, m.QueueDepth,
		m.CircuitState, m.ItemsPublished, m.ItemsFailed, m.ExternalLatency,
	)
	return m
}

// ObserveStage records one stage execution's outcome and duration.
func (m *Metrics) ObserveStage(stage, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageAttempts.WithLabelValues(stage, outcome).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveStageError records a classified stage failure.
func (m *Metrics) ObserveStageError(stage, kind string) {
	if m == nil {
		return
	}
	m.StageErrors.WithLabelValues(stage, kind).Inc()
}

// SetQueueDepth publishes the current backlog for a stage queue.
func (m *Metrics) SetQueueDepth(stage string, depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(stage).Set(float64(depth))
}

// circuitStateValue maps the resilient package's string states to the
// numeric encoding CircuitState exports.
func circuitStateValue(state string) float64 {
	switch state {
	case "open":
		return 2
	case "half_open":
		return 1
	default:
		return 0
	}
}

// SetCircuitState publishes a breaker's current state.
func (m *Metrics) SetCircuitState(service, class, state string) {
	if m == nil {
		return
	}
	m.CircuitState.WithLabelValues(service, class).Set(circuitStateValue(state))
}

// ObserveExternalCall records one resilient-layer call's latency.
func (m *Metrics) ObserveExternalCall(service, class, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ExternalLatency.WithLabelValues(service, class, outcome).Observe(d.Seconds())
}
