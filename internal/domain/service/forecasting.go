package service

import (
	"time"

	"FxPredict/internal/domain/models"
)

// SeriesSynthesizer builds a deterministic daily rate history ending at asOf's calendar day.
type SeriesSynthesizer interface {
	Synthesize(currency string, baseRate float64, asOf time.Time) (models.HistoricalSeries, error)
}

// TrendForecaster fits a trend to samples indexed 0..n-1.
type TrendForecaster interface {
	Fit(values []float64) (models.RegressionModel, error)
}
