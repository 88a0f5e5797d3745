package usecase

import (
	"context"
	"errors"
	"math"
	"time"

	"FxPredict/internal/domain/models"
	domrepo "FxPredict/internal/domain/repository"
	domsvc "FxPredict/internal/domain/service"
	"FxPredict/pkg/util"

	"golang.org/x/sync/errgroup"
)

// PipelineOption configures PredictionPipeline.
type PipelineOption func(*PredictionPipeline)

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) PipelineOption {
	return func(p *PredictionPipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLocation sets the zone whose calendar day a series ends on.
func WithLocation(loc *time.Location) PipelineOption {
	return func(p *PredictionPipeline) {
		if loc != nil {
			p.loc = loc
		}
	}
}

// WithRateTimeout bounds every rate-source call.
func WithRateTimeout(d time.Duration) PipelineOption {
	return func(p *PredictionPipeline) {
		p.rateTimeout = d
	}
}

// WithConcurrency caps parallel per-currency work in batch calls (<= 0 means unbounded).
func WithConcurrency(n int) PipelineOption {
	return func(p *PredictionPipeline) {
		p.concurrency = n
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m domrepo.Metrics) PipelineOption {
	return func(p *PredictionPipeline) {
		p.metrics = m
	}
}

// PredictionPipeline orchestrates rate source -> synthesizer -> forecaster -> classifier.
// It keeps no state between calls.
type PredictionPipeline struct {
	currencies  models.CurrencySet
	rates       domrepo.RateSource
	synth       domsvc.SeriesSynthesizer
	forecaster  domsvc.TrendForecaster
	metrics     domrepo.Metrics
	now         func() time.Time
	loc         *time.Location
	rateTimeout time.Duration
	concurrency int
}

func NewPredictionPipeline(
	currencies models.CurrencySet,
	rates domrepo.RateSource,
	synth domsvc.SeriesSynthesizer,
	forecaster domsvc.TrendForecaster,
	opts ...PipelineOption,
) *PredictionPipeline {
	p := &PredictionPipeline{
		currencies:  currencies,
		rates:       rates,
		synth:       synth,
		forecaster:  forecaster,
		now:         time.Now,
		loc:         time.UTC,
		rateTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SupportedCurrencies lists the supported codes in declared order.
func (p *PredictionPipeline) SupportedCurrencies() []string { return p.currencies.Codes() }

// BaseCurrency is the quote currency of every rate.
func (p *PredictionPipeline) BaseCurrency() string { return p.currencies.Base() }

// Predict runs the full pipeline for one currency.
func (p *PredictionPipeline) Predict(ctx context.Context, currency string) (models.PredictionResult, error) {
	f, err := p.Forecast(ctx, currency)
	if err != nil {
		return models.PredictionResult{}, err
	}
	return f.Result, nil
}

// Historical returns the synthesized series for currency.
func (p *PredictionPipeline) Historical(ctx context.Context, currency string) (models.HistoricalSeries, error) {
	f, err := p.Forecast(ctx, currency)
	if err != nil {
		return models.HistoricalSeries{}, err
	}
	return f.Series, nil
}

// Future returns the dated forecast points following the last historical day.
func (p *PredictionPipeline) Future(ctx context.Context, currency string) ([]models.RatePoint, error) {
	f, err := p.Forecast(ctx, currency)
	if err != nil {
		return nil, err
	}
	return f.Future, nil
}

// ChangePercentage returns the predicted change over the horizon, in percent.
func (p *PredictionPipeline) ChangePercentage(ctx context.Context, currency string) (float64, error) {
	f, err := p.Forecast(ctx, currency)
	if err != nil {
		return 0, err
	}
	return f.Result.ChangePercentage, nil
}

// PredictAll predicts every supported currency in declared order. The first failure
// cancels outstanding work and is returned alone; no partial list is produced.
func (p *PredictionPipeline) PredictAll(ctx context.Context) ([]models.PredictionResult, error) {
	start := time.Now()
	codes := p.currencies.Codes()
	results := make([]models.PredictionResult, len(codes))

	g, gctx := errgroup.WithContext(ctx)
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}
	for i, code := range codes {
		i, code := i, code
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := p.Predict(gctx, code)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	p.recordLatency("predict_all", start)
	return results, nil
}

// PredictAllPartial is the lenient batch: every currency is attempted and failures are
// reported per currency instead of failing the call.
func (p *PredictionPipeline) PredictAllPartial(ctx context.Context) models.PartialPredictions {
	start := time.Now()
	codes := p.currencies.Codes()
	results := make([]models.PredictionResult, len(codes))
	errs := make([]error, len(codes))

	var g errgroup.Group
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}
	for i, code := range codes {
		i, code := i, code
		g.Go(func() error {
			results[i], errs[i] = p.Predict(ctx, code)
			return nil
		})
	}
	_ = g.Wait()

	out := models.PartialPredictions{Results: make([]models.PredictionResult, 0, len(codes))}
	for i, code := range codes {
		if errs[i] != nil {
			if out.Errors == nil {
				out.Errors = make(map[string]error)
			}
			out.Errors[code] = errs[i]
			continue
		}
		out.Results = append(out.Results, results[i])
	}
	p.recordLatency("predict_all_partial", start)
	return out
}

// Forecast runs every stage for currency and returns all intermediate values.
func (p *PredictionPipeline) Forecast(ctx context.Context, currency string) (models.Forecast, error) {
	start := time.Now()
	f, err := p.forecast(ctx, currency)
	if err != nil {
		p.recordError(err)
		return models.Forecast{}, err
	}
	if p.metrics != nil {
		p.metrics.RecordPrediction(currency, f.Result)
	}
	p.recordLatency("forecast", start)
	return f, nil
}

func (p *PredictionPipeline) forecast(ctx context.Context, currency string) (models.Forecast, error) {
	if !p.currencies.Contains(currency) {
		return models.Forecast{}, models.NewUnsupportedCurrencyError(currency)
	}

	baseRate, err := p.fetchBaseRate(ctx, currency)
	if err != nil {
		return models.Forecast{}, err
	}

	series, err := p.synth.Synthesize(currency, baseRate, p.now().In(p.loc))
	if err != nil {
		return models.Forecast{}, err
	}
	last, ok := series.Last()
	if !ok {
		return models.Forecast{}, models.NewComputationError(currency, "synthesized series is empty")
	}

	model, err := p.forecaster.Fit(series.Values())
	if err != nil {
		var pe *models.PredictionError
		if errors.As(err, &pe) && pe.Currency == "" {
			pe.Currency = currency
		}
		return models.Forecast{}, err
	}

	n := len(series.Points)
	future := make([]models.RatePoint, 0, models.HorizonDays)
	for day := 1; day <= models.HorizonDays; day++ {
		v := model.Predict(float64(n - 1 + day))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.Forecast{}, models.NewComputationError(currency, "forecast is not finite")
		}
		future = append(future, models.RatePoint{Date: util.AddDays(last.Date, day), Rate: v})
	}

	currentRate := last.Rate
	futureRate := future[len(future)-1].Rate
	changePct := (futureRate - currentRate) / currentRate * 100
	if math.IsNaN(changePct) || math.IsInf(changePct, 0) {
		return models.Forecast{}, models.NewComputationError(currency, "change percentage is not finite")
	}

	return models.Forecast{
		Series: series,
		Model:  model,
		Future: future,
		Result: models.PredictionResult{
			Currency:         currency,
			CurrentRate:      currentRate,
			PredictedRate:    futureRate,
			ChangePercentage: changePct,
			Recommendation:   Recommend(currency, changePct),
		},
	}, nil
}

func (p *PredictionPipeline) fetchBaseRate(ctx context.Context, currency string) (float64, error) {
	if p.rateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.rateTimeout)
		defer cancel()
	}
	start := time.Now()
	rate, err := p.rates.GetBaseRate(ctx, currency)
	p.recordLatency("rate_source", start)
	if err != nil {
		if kind, ok := models.KindOf(err); ok && kind == models.KindDataSource {
			return 0, err
		}
		return 0, models.NewDataSourceError(currency, err)
	}
	return rate, nil
}

func (p *PredictionPipeline) recordError(err error) {
	if p.metrics == nil {
		return
	}
	kind, ok := models.KindOf(err)
	if !ok {
		kind = "UNKNOWN"
	}
	p.metrics.RecordError(string(kind))
}

func (p *PredictionPipeline) recordLatency(op string, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordLatency(op, time.Since(start).Seconds())
	}
}
