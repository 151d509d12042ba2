package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

var authDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 1.5, 2, 5}

// AuthMetrics tracks identity operations and the current session state.
type AuthMetrics struct {
	Operations    *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	Authenticated prometheus.Gauge
}

// NewAuthMetrics registers the auth collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func NewAuthMetrics(namespace string, reg prometheus.Registerer) *AuthMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &AuthMetrics{
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_operations_total",
				Help:      "Count of identity operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "auth_operation_duration_seconds",
				Help:      "Latency of identity operations including simulated network delay",
				Buckets:   authDurationBuckets,
			},
			[]string{"operation", "outcome"},
		),
		Authenticated: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "session_authenticated",
				Help:      "1 when the process-wide session holds an authenticated identity",
			},
		),
	}
}

// Observe records one finished operation.
func (m *AuthMetrics) Observe(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = OutcomeSuccess
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
	m.Duration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// SetAuthenticated mirrors the session state into the gauge.
func (m *AuthMetrics) SetAuthenticated(authenticated bool) {
	if m == nil {
		return
	}
	if authenticated {
		m.Authenticated.Set(1)
		return
	}
	m.Authenticated.Set(0)
}
