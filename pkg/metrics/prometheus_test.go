package metrics

import (
	"testing"

	"FxPredict/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordPrediction("EUR", models.PredictionResult{Currency: "EUR", CurrentRate: 1.1, PredictedRate: 1.09, ChangePercentage: -0.9})
	r.RecordPrediction("EUR", models.PredictionResult{Currency: "EUR", CurrentRate: 1.2, PredictedRate: 1.21, ChangePercentage: 0.8})
	r.RecordError("DATA_SOURCE")
	r.RecordSnapshot("kafka")
	r.RecordLatency("forecast", 0.01)

	if got := testutil.ToFloat64(r.predictions.WithLabelValues("EUR")); got != 2 {
		t.Fatalf("predictions=%v", got)
	}
	if got := testutil.ToFloat64(r.currentRate.WithLabelValues("EUR")); got != 1.2 {
		t.Fatalf("current rate gauge=%v", got)
	}
	if got := testutil.ToFloat64(r.changePct.WithLabelValues("EUR")); got != 0.8 {
		t.Fatalf("change gauge=%v", got)
	}
	if got := testutil.ToFloat64(r.errorsTotal.WithLabelValues("DATA_SOURCE")); got != 1 {
		t.Fatalf("errors=%v", got)
	}
	if got := testutil.ToFloat64(r.snapshots.WithLabelValues("kafka")); got != 1 {
		t.Fatalf("snapshots=%v", got)
	}
	if n := testutil.CollectAndCount(r.latency); n != 1 {
		t.Fatalf("latency series=%d", n)
	}
}
