package synthesis

import (
	"math"
	"time"

	"FxPredict/internal/domain/models"
	domsvc "FxPredict/internal/domain/service"
	"FxPredict/pkg/util"
)

const (
	biasScale = 0.001
	stepScale = 0.005
)

// Option configures Synthesizer.
type Option func(*Synthesizer)

// WithSourceFactory replaces the seeded generator, e.g. with a constant source in tests.
func WithSourceFactory(f SourceFactory) Option {
	return func(s *Synthesizer) {
		if f != nil {
			s.newSource = f
		}
	}
}

// WithDays sets the series length.
func WithDays(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.days = n
		}
	}
}

// Synthesizer builds a per-currency multiplicative random walk anchored at the live rate.
type Synthesizer struct {
	days      int
	newSource SourceFactory
}

// New creates a Synthesizer producing models.HistoryDays points per series.
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{
		days:      models.HistoryDays,
		newSource: NewLCG48Source,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize walks backward from asOf's calendar day, recording the working rate for each
// day before stepping it to the next earlier day. The first draw of the seeded source is
// the per-currency trend bias; every step adds one fresh draw on top of it.
func (s *Synthesizer) Synthesize(currency string, baseRate float64, asOf time.Time) (models.HistoricalSeries, error) {
	if math.IsNaN(baseRate) || math.IsInf(baseRate, 0) {
		return models.HistoricalSeries{}, models.NewComputationError(currency, "base rate is not finite")
	}
	if baseRate <= 0 {
		return models.HistoricalSeries{}, models.NewInvalidRateError(currency, baseRate)
	}

	src := s.newSource(SeedFor(currency))
	bias := (src.Float64() - 0.5) * biasScale

	today := util.StartOfDay(asOf)
	points := make([]models.RatePoint, s.days)
	rate := baseRate
	// walk fills from the newest slot down, so points end up ascending by date
	for i := 0; i < s.days; i++ {
		points[s.days-1-i] = models.RatePoint{Date: util.AddDays(today, -i), Rate: rate}
		delta := (src.Float64()-0.5)*stepScale + bias
		rate = rate * (1 + delta)
	}

	return models.HistoricalSeries{Currency: currency, Points: points}, nil
}

var _ domsvc.SeriesSynthesizer = (*Synthesizer)(nil)
