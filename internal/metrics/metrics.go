// Package metrics provides Prometheus metrics for rendezcode.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "rendezcode"
)

// Metrics contains all Prometheus metrics for a rendezcode session
// orchestrator.
type Metrics struct {
	// Session outcomes, labelled by role (initiator/receiver) and
	// outcome (ok, timeout, bad_code, relay_error, malformed_code,
	// cancelled).
	SessionsTotal    *prometheus.CounterVec
	SessionDuration  *prometheus.HistogramVec
	SessionsActive   prometheus.Gauge

	// Relay transport.
	RelayRequestLatency *prometheus.HistogramVec
	RelayErrors         *prometheus.CounterVec
	DeallocateTotal     *prometheus.CounterVec

	// Protocol observability.
	ProtocolWarnings prometheus.Counter
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the default metrics instance.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a new Metrics instance with all metrics registered
// against the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new Metrics instance with a custom
// registry, so tests can avoid colliding with the global one.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total rendezvous sessions by role and outcome",
		}, []string{"role", "outcome"}),
		SessionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Histogram of session duration from GetCode/SetCode to terminal state",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 180},
		}, []string{"role"}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of sessions currently in progress",
		}),
		RelayRequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_request_latency_seconds",
			Help:      "Histogram of relay HTTP request latency by endpoint",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"endpoint"}),
		RelayErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_errors_total",
			Help:      "Total relay request errors by endpoint",
		}, []string{"endpoint"}),
		DeallocateTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deallocate_total",
			Help:      "Total deallocate attempts by result",
		}, []string{"result"}),
		ProtocolWarnings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_warnings_total",
			Help:      "Total non-fatal protocol warnings observed (e.g. extra mailbox messages)",
		}),
	}
}

// RecordSessionStart marks a session as having begun.
func (m *Metrics) RecordSessionStart() {
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session's terminal outcome and duration.
func (m *Metrics) RecordSessionEnd(role, outcome string, durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionsTotal.WithLabelValues(role, outcome).Inc()
	m.SessionDuration.WithLabelValues(role).Observe(durationSeconds)
}

// RecordRelayRequest records a completed relay HTTP call.
func (m *Metrics) RecordRelayRequest(endpoint string, latencySeconds float64) {
	m.RelayRequestLatency.WithLabelValues(endpoint).Observe(latencySeconds)
}

// RecordRelayError records a failed relay HTTP call.
func (m *Metrics) RecordRelayError(endpoint string) {
	m.RelayErrors.WithLabelValues(endpoint).Inc()
}

// RecordDeallocate records the outcome of a best-effort deallocate call.
func (m *Metrics) RecordDeallocate(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.DeallocateTotal.WithLabelValues(result).Inc()
}

// RecordProtocolWarning records a non-fatal protocol anomaly, such as an
// unexpected extra message in a mailbox.
func (m *Metrics) RecordProtocolWarning() {
	m.ProtocolWarnings.Inc()
}
