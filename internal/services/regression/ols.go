package regression

import (
	"math"

	"FxPredict/internal/domain/models"
	domsvc "FxPredict/internal/domain/service"
)

// OLS fits an ordinary-least-squares line to samples at x = 0..n-1.
type OLS struct{}

func NewOLS() *OLS { return &OLS{} }

// Fit returns the zero model for an empty series and a flat line (slope 0) whenever the
// x spread is exactly zero, i.e. n == 1.
func (OLS) Fit(values []float64) (models.RegressionModel, error) {
	n := len(values)
	if n == 0 {
		return models.RegressionModel{}, nil
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.RegressionModel{}, models.NewComputationError("", "series contains a non-finite value")
		}
	}

	var sumX, sumY float64
	for i, v := range values {
		sumX += float64(i)
		sumY += v
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var num, den float64
	for i, v := range values {
		dx := float64(i) - meanX
		num += dx * (v - meanY)
		den += dx * dx
	}

	slope := 0.0
	if den != 0 {
		slope = num / den
	}
	return models.RegressionModel{
		Intercept: meanY - slope*meanX,
		Slope:     slope,
	}, nil
}

var _ domsvc.TrendForecaster = (*OLS)(nil)
