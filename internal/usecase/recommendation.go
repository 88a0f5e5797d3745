package usecase

import (
	"fmt"
	"math"

	"FxPredict/internal/domain/models"
)

const stableRecommendation = "Stable — no significant change expected"

// Recommend classifies a 7-day change percentage for currency against USD.
func Recommend(currency string, changePct float64) string {
	switch {
	case math.Abs(changePct) < models.StableThresholdPct:
		return stableRecommendation
	case changePct > 0:
		return fmt.Sprintf("%s likely to strengthen against %s (%.2f%% change)", models.BaseCurrency, currency, changePct)
	default:
		return fmt.Sprintf("%s likely to weaken against %s (%.2f%% change)", models.BaseCurrency, currency, math.Abs(changePct))
	}
}
