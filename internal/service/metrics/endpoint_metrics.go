package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EndpointMetrics tracks prediction API latency and errors per endpoint and error code.
type EndpointMetrics struct {
	Latency *prometheus.HistogramVec
	Errors  *prometheus.CounterVec
}

func NewEndpointMetrics(reg prometheus.Registerer) *EndpointMetrics {
	f := promauto.With(reg)
	return &EndpointMetrics{
		Latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "fxpredict",
				Subsystem: "api",
				Name:      "latency_seconds",
				Help:      "Latency of prediction endpoints",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		Errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fxpredict",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Errors by prediction endpoint and code",
			},
			[]string{"endpoint", "code"},
		),
	}
}

// Observe records one call to endpoint; code is empty on success.
func (m *EndpointMetrics) Observe(endpoint, code string, seconds float64) {
	if m == nil {
		return
	}
	m.Latency.WithLabelValues(endpoint).Observe(seconds)
	if code != "" {
		m.Errors.WithLabelValues(endpoint, code).Inc()
	}
}
