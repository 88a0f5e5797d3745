package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"FxPredict/internal/domain/models"
	"FxPredict/internal/services/regression"
	"FxPredict/internal/services/synthesis"
)

type fakeRates struct {
	mu    sync.Mutex
	rates map[string]float64
	fail  map[string]error
	calls []string
}

func (f *fakeRates) GetBaseRate(_ context.Context, currency string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, currency)
	if err, ok := f.fail[currency]; ok {
		return 0, err
	}
	if r, ok := f.rates[currency]; ok {
		return r, nil
	}
	return 1.0, nil
}

func (f *fakeRates) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type constSource float64

func (c constSource) Float64() float64 { return float64(c) }

var testNow = time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)

func newTestPipeline(rates *fakeRates, opts ...synthesis.Option) *PredictionPipeline {
	return NewPredictionPipeline(
		models.DefaultCurrencySet(),
		rates,
		synthesis.New(opts...),
		regression.NewOLS(),
		WithClock(func() time.Time { return testNow }),
		WithConcurrency(1),
	)
}

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestPredictFlatSeriesIsStable(t *testing.T) {
	rates := &fakeRates{rates: map[string]float64{"EUR": 1.10}}
	p := newTestPipeline(rates, synthesis.WithSourceFactory(func(int64) synthesis.Source { return constSource(0.5) }))

	res, err := p.Predict(context.Background(), "EUR")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if res.CurrentRate != 1.10 {
		t.Fatalf("current=%v", res.CurrentRate)
	}
	if !approx(res.PredictedRate, 1.10, 1e-9) {
		t.Fatalf("predicted=%v", res.PredictedRate)
	}
	if !approx(res.ChangePercentage, 0, 1e-9) {
		t.Fatalf("change=%v", res.ChangePercentage)
	}
	if res.Recommendation != "Stable — no significant change expected" {
		t.Fatalf("recommendation=%q", res.Recommendation)
	}
}

func TestPredictReferenceEUR(t *testing.T) {
	rates := &fakeRates{rates: map[string]float64{"EUR": 1.10}}
	p := newTestPipeline(rates)

	res, err := p.Predict(context.Background(), "EUR")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if res.Currency != "EUR" || res.CurrentRate != 1.10 {
		t.Fatalf("unexpected result %+v", res)
	}
	if !approx(res.PredictedRate, 1.0984587604980955, 1e-9) {
		t.Fatalf("predicted=%.16f", res.PredictedRate)
	}
	if !approx(res.ChangePercentage, -0.1401126819913, 1e-8) {
		t.Fatalf("change=%.13f", res.ChangePercentage)
	}
	if res.Recommendation != stableRecommendation {
		t.Fatalf("recommendation=%q", res.Recommendation)
	}
}

func TestPredictReferenceAUDStrengthens(t *testing.T) {
	// change percentage does not depend on the base rate's scale
	rates := &fakeRates{rates: map[string]float64{"AUD": 1.52}}
	p := newTestPipeline(rates)

	res, err := p.Predict(context.Background(), "AUD")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !approx(res.ChangePercentage, 0.578640087511, 1e-8) {
		t.Fatalf("change=%.12f", res.ChangePercentage)
	}
	if want := "USD likely to strengthen against AUD (0.58% change)"; res.Recommendation != want {
		t.Fatalf("recommendation=%q want %q", res.Recommendation, want)
	}
}

func TestPredictIsDeterministic(t *testing.T) {
	rates := &fakeRates{rates: map[string]float64{"GBP": 0.79}}
	p := newTestPipeline(rates)

	a, err := p.Predict(context.Background(), "GBP")
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Predict(context.Background(), "GBP")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("results differ: %+v vs %+v", a, b)
	}
}

func TestPredictUnsupportedCurrencySkipsRateSource(t *testing.T) {
	rates := &fakeRates{}
	p := newTestPipeline(rates)

	for _, code := range []string{"XYZ", "eur", "", "USD"} {
		_, err := p.Predict(context.Background(), code)
		if !errors.Is(err, models.ErrUnsupportedCurrency) {
			t.Fatalf("%q: expected unsupported currency, got %v", code, err)
		}
	}
	if n := rates.callCount(); n != 0 {
		t.Fatalf("rate source called %d times", n)
	}
}

func TestPredictRateSourceFailureIsDataSource(t *testing.T) {
	rates := &fakeRates{fail: map[string]error{"JPY": errors.New("connection refused")}}
	p := newTestPipeline(rates)

	_, err := p.Predict(context.Background(), "JPY")
	if !errors.Is(err, models.ErrDataSource) {
		t.Fatalf("expected data source error, got %v", err)
	}
	var pe *models.PredictionError
	if !errors.As(err, &pe) || pe.Currency != "JPY" || pe.Code() != "ERR_DATA_SOURCE" {
		t.Fatalf("unexpected error %#v", err)
	}
}

func TestPredictInvalidRate(t *testing.T) {
	for _, rate := range []float64{0, -1.5} {
		rates := &fakeRates{rates: map[string]float64{"RON": rate}}
		p := newTestPipeline(rates)
		_, err := p.Predict(context.Background(), "RON")
		if !errors.Is(err, models.ErrInvalidRate) {
			t.Fatalf("rate %v: expected invalid rate, got %v", rate, err)
		}
	}
}

func TestPredictAllOrderAndLength(t *testing.T) {
	rates := &fakeRates{}
	p := NewPredictionPipeline(
		models.DefaultCurrencySet(),
		rates,
		synthesis.New(),
		regression.NewOLS(),
		WithClock(func() time.Time { return testNow }),
	)

	results, err := p.PredictAll(context.Background())
	if err != nil {
		t.Fatalf("predict all: %v", err)
	}
	want := []string{"EUR", "GBP", "JPY", "AUD", "RON"}
	if len(results) != len(want) {
		t.Fatalf("len=%d", len(results))
	}
	for i, code := range want {
		if results[i].Currency != code {
			t.Fatalf("results[%d]=%s want %s", i, results[i].Currency, code)
		}
	}
}

func TestPredictAllFailsFast(t *testing.T) {
	rates := &fakeRates{fail: map[string]error{"JPY": errors.New("timeout")}}
	p := newTestPipeline(rates)

	results, err := p.PredictAll(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if results != nil {
		t.Fatalf("expected no partial results, got %d", len(results))
	}
	if !errors.Is(err, models.ErrDataSource) {
		t.Fatalf("expected data source error, got %v", err)
	}
	if n := rates.callCount(); n != 3 {
		t.Fatalf("expected work to stop after JPY, rate source called %d times", n)
	}
}

// hangingRates never answers; it returns only once ctx is done.
type hangingRates struct{}

func (hangingRates) GetBaseRate(ctx context.Context, _ string) (float64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestPredictRateTimeoutIsDataSource(t *testing.T) {
	p := NewPredictionPipeline(
		models.DefaultCurrencySet(),
		hangingRates{},
		synthesis.New(),
		regression.NewOLS(),
		WithClock(func() time.Time { return testNow }),
		WithRateTimeout(20*time.Millisecond),
	)

	start := time.Now()
	_, err := p.Predict(context.Background(), "EUR")
	if !errors.Is(err, models.ErrDataSource) {
		t.Fatalf("expected data source error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline cause, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("rate timeout not applied, took %v", elapsed)
	}
}

// gatedRates fails one currency once every other call is in flight; the
// others wait for cancellation.
type gatedRates struct {
	failing   string
	others    int
	entered   chan struct{}
	cancelled int32
}

func (g *gatedRates) GetBaseRate(ctx context.Context, currency string) (float64, error) {
	if currency == g.failing {
		for i := 0; i < g.others; i++ {
			select {
			case <-g.entered:
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
		return 0, errors.New("upstream down")
	}
	g.entered <- struct{}{}
	<-ctx.Done()
	atomic.AddInt32(&g.cancelled, 1)
	return 0, ctx.Err()
}

func TestPredictAllUnboundedCancelsSiblings(t *testing.T) {
	rates := &gatedRates{failing: "JPY", others: 4, entered: make(chan struct{}, 4)}
	p := NewPredictionPipeline(
		models.DefaultCurrencySet(),
		rates,
		synthesis.New(),
		regression.NewOLS(),
		WithClock(func() time.Time { return testNow }),
		WithRateTimeout(10*time.Second),
		WithConcurrency(0),
	)

	start := time.Now()
	results, err := p.PredictAll(context.Background())
	if results != nil {
		t.Fatalf("expected no partial results, got %d", len(results))
	}
	if !errors.Is(err, models.ErrDataSource) {
		t.Fatalf("expected data source error, got %v", err)
	}
	if got := atomic.LoadInt32(&rates.cancelled); got != 4 {
		t.Fatalf("cancelled siblings=%d, want 4", got)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("siblings ran to the rate timeout, took %v", elapsed)
	}
}

func TestPredictAllPartialCollectsErrors(t *testing.T) {
	rates := &fakeRates{fail: map[string]error{"GBP": errors.New("503")}}
	p := newTestPipeline(rates)

	out := p.PredictAllPartial(context.Background())
	if len(out.Results) != 4 {
		t.Fatalf("results=%d", len(out.Results))
	}
	if len(out.Errors) != 1 || !errors.Is(out.Errors["GBP"], models.ErrDataSource) {
		t.Fatalf("errors=%v", out.Errors)
	}
	want := []string{"EUR", "JPY", "AUD", "RON"}
	for i, code := range want {
		if out.Results[i].Currency != code {
			t.Fatalf("results[%d]=%s want %s", i, out.Results[i].Currency, code)
		}
	}
}

func TestHistoricalAndFuture(t *testing.T) {
	rates := &fakeRates{rates: map[string]float64{"EUR": 1.10}}
	p := newTestPipeline(rates)
	ctx := context.Background()

	series, err := p.Historical(ctx, "EUR")
	if err != nil {
		t.Fatal(err)
	}
	if len(series.Points) != models.HistoryDays {
		t.Fatalf("points=%d", len(series.Points))
	}
	last, _ := series.Last()
	if got := last.Date.Format("2006-01-02"); got != "2026-10-19" {
		t.Fatalf("last date=%s", got)
	}

	future, err := p.Future(ctx, "EUR")
	if err != nil {
		t.Fatal(err)
	}
	if len(future) != models.HorizonDays {
		t.Fatalf("future=%d", len(future))
	}
	if got := future[0].Date.Format("2006-01-02"); got != "2026-10-20" {
		t.Fatalf("first future date=%s", got)
	}
	if got := future[6].Date.Format("2006-01-02"); got != "2026-10-26" {
		t.Fatalf("last future date=%s", got)
	}

	res, err := p.Predict(ctx, "EUR")
	if err != nil {
		t.Fatal(err)
	}
	if res.PredictedRate != future[6].Rate {
		t.Fatalf("predicted %v != last future %v", res.PredictedRate, future[6].Rate)
	}
	pct, err := p.ChangePercentage(ctx, "EUR")
	if err != nil {
		t.Fatal(err)
	}
	if pct != res.ChangePercentage {
		t.Fatalf("change %v != %v", pct, res.ChangePercentage)
	}
}

func TestRecommendBoundaries(t *testing.T) {
	cases := []struct {
		pct  float64
		want string
	}{
		{0, stableRecommendation},
		{0.4999, stableRecommendation},
		{-0.4999, stableRecommendation},
		{0.5, "USD likely to strengthen against EUR (0.50% change)"},
		{-0.5, "USD likely to weaken against EUR (0.50% change)"},
		{2.346, "USD likely to strengthen against EUR (2.35% change)"},
		{-1.2, "USD likely to weaken against EUR (1.20% change)"},
	}
	for _, tc := range cases {
		if got := Recommend("EUR", tc.pct); got != tc.want {
			t.Errorf("Recommend(%v)=%q want %q", tc.pct, got, tc.want)
		}
	}
}
