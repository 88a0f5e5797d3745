package metrics

import (
	"FxPredict/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	predictions   *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	snapshots     *prometheus.CounterVec
	currentRate   *prometheus.GaugeVec
	predictedRate *prometheus.GaugeVec
	changePct     *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the recorder on reg (nil leaves it unregistered).
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxpredict_predictions_total",
				Help: "Total number of successful predictions",
			},
			[]string{"currency"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxpredict_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		snapshots: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxpredict_snapshots_total",
				Help: "Snapshots delivered per backend",
			},
			[]string{"backend"},
		),
		currentRate: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fxpredict_current_rate",
				Help: "Latest USD rate used for a currency",
			},
			[]string{"currency"},
		),
		predictedRate: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fxpredict_predicted_rate",
				Help: "Latest 7-day predicted USD rate for a currency",
			},
			[]string{"currency"},
		),
		changePct: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fxpredict_change_percentage",
				Help: "Latest predicted change in percent",
			},
			[]string{"currency"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fxpredict_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordPrediction records a successful prediction and its headline numbers.
func (r *Recorder) RecordPrediction(currency string, res models.PredictionResult) {
	r.predictions.WithLabelValues(currency).Inc()
	r.currentRate.WithLabelValues(currency).Set(res.CurrentRate)
	r.predictedRate.WithLabelValues(currency).Set(res.PredictedRate)
	r.changePct.WithLabelValues(currency).Set(res.ChangePercentage)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordSnapshot records a snapshot delivered to backend.
func (r *Recorder) RecordSnapshot(backend string) {
	r.snapshots.WithLabelValues(backend).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
