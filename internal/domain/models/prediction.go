package models

import "time"

// RatePoint is one daily observation (or forecast) of a USD rate.
type RatePoint struct {
	Date time.Time
	Rate float64
}

// HistoricalSeries is the synthesized daily history of one currency, ascending by date.
type HistoricalSeries struct {
	Currency string
	Points   []RatePoint
}

// Values returns the rates of the series in date order.
func (s HistoricalSeries) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Rate
	}
	return out
}

// Last returns the most recent point. ok is false for an empty series.
func (s HistoricalSeries) Last() (RatePoint, bool) {
	if len(s.Points) == 0 {
		return RatePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// RegressionModel is a fitted line y = Intercept + Slope*x.
type RegressionModel struct {
	Intercept float64
	Slope     float64
}

// Predict evaluates the line at index x.
func (m RegressionModel) Predict(x float64) float64 {
	return m.Intercept + m.Slope*x
}

// Forecast bundles everything one pipeline run derives for a currency.
type Forecast struct {
	Series HistoricalSeries
	Model  RegressionModel
	Future []RatePoint
	Result PredictionResult
}

// PredictionResult is the per-currency outcome of the forecasting pipeline.
// Note: no transport (json/http) concerns here.
type PredictionResult struct {
	Currency         string
	CurrentRate      float64
	PredictedRate    float64
	ChangePercentage float64
	Recommendation   string
}

// PartialPredictions is the lenient batch outcome: successes in declared order plus
// the error recorded for every currency that failed.
type PartialPredictions struct {
	Results []PredictionResult
	Errors  map[string]error
}
