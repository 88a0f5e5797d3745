package synthesis

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"FxPredict/internal/domain/models"
	"FxPredict/pkg/util"
)

type constSource float64

func (c constSource) Float64() float64 { return float64(c) }

var asOf = time.Date(2026, 10, 19, 15, 4, 5, 0, time.UTC)

func TestSynthesizeShape(t *testing.T) {
	s := New()
	series, err := s.Synthesize("EUR", 1.10, asOf)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(series.Points) != models.HistoryDays {
		t.Fatalf("expected %d points, got %d", models.HistoryDays, len(series.Points))
	}
	last, _ := series.Last()
	if util.FormatDay(last.Date) != "2026-10-19" {
		t.Fatalf("last date = %s, want generation day", util.FormatDay(last.Date))
	}
	if last.Rate != 1.10 {
		t.Fatalf("today's rate = %v, want the base rate", last.Rate)
	}
	if util.FormatDay(series.Points[0].Date) != "2026-09-20" {
		t.Fatalf("first date = %s", util.FormatDay(series.Points[0].Date))
	}
	for i := 1; i < len(series.Points); i++ {
		want := util.AddDays(series.Points[i-1].Date, 1)
		if !series.Points[i].Date.Equal(want) {
			t.Fatalf("point %d date %v, want %v", i, series.Points[i].Date, want)
		}
		if series.Points[i].Rate <= 0 {
			t.Fatalf("point %d has non-positive rate %v", i, series.Points[i].Rate)
		}
	}
}

func TestSynthesizeDeterministic(t *testing.T) {
	s := New()
	a, err := s.Synthesize("GBP", 0.79, asOf)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	b, err := New().Synthesize("GBP", 0.79, asOf.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same currency, rate and day produced different series")
	}
}

func TestSynthesizeDiffersAcrossCurrencies(t *testing.T) {
	s := New()
	a, _ := s.Synthesize("EUR", 1, asOf)
	b, _ := s.Synthesize("GBP", 1, asOf)
	if reflect.DeepEqual(a.Values(), b.Values()) {
		t.Fatalf("expected per-currency walks to differ")
	}
}

func TestSynthesizeReferenceWalk(t *testing.T) {
	series, err := New().Synthesize("EUR", 1.10, asOf)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if got := series.Points[0].Rate; math.Abs(got-1.1071202711346884) > 1e-12 {
		t.Fatalf("oldest rate = %v, want 1.1071202711346884", got)
	}
}

func TestSynthesizeConstantSourceIsFlat(t *testing.T) {
	s := New(WithSourceFactory(func(int64) Source { return constSource(0.5) }))
	series, err := s.Synthesize("EUR", 1.10, asOf)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	for i, p := range series.Points {
		if p.Rate != 1.10 {
			t.Fatalf("point %d = %v, want 1.10", i, p.Rate)
		}
	}
}

func TestSynthesizeRejectsBadRates(t *testing.T) {
	s := New()
	for _, rate := range []float64{0, -1.5} {
		_, err := s.Synthesize("EUR", rate, asOf)
		if !errors.Is(err, models.ErrInvalidRate) {
			t.Errorf("rate %v: expected InvalidRate, got %v", rate, err)
		}
	}
	for _, rate := range []float64{math.NaN(), math.Inf(1)} {
		_, err := s.Synthesize("EUR", rate, asOf)
		if !errors.Is(err, models.ErrComputation) {
			t.Errorf("rate %v: expected ComputationError, got %v", rate, err)
		}
	}
}
