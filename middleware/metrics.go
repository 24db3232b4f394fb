package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Result label values of oaskema_validations_total.
const (
	ResultValid   = "valid"
	ResultInvalid = "invalid"
	ResultSkipped = "skipped"
)

// Metrics records validation outcomes.
type Metrics struct {
	validations *prometheus.CounterVec
	duration    prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oaskema_validations_total",
			Help: "Requests checked against the OpenAPI document, by result and failure code.",
		}, []string{"result", "kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "oaskema_validation_duration_seconds",
			Help:    "Time spent decoding and validating a request.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.validations, m.duration)
	}
	return m
}

func (m *Metrics) observe(result, kind string, seconds float64) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(result, kind).Inc()
	if result != ResultSkipped {
		m.duration.Observe(seconds)
	}
}
