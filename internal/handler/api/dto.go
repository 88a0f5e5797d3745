package api

import (
	"time"

	"FxPredict/internal/domain/models"
	"FxPredict/pkg/util"
)

type PredictionDTO struct {
	Currency         string  `json:"currency"`
	CurrentRate      float64 `json:"currentRate"`
	PredictedRate    float64 `json:"predictedRate"`
	ChangePercentage float64 `json:"changePercentage"`
	Recommendation   string  `json:"recommendation"`
}

type RatePointDTO struct {
	Date string  `json:"date"` // YYYY-MM-DD
	Rate float64 `json:"rate"`
}

type SeriesDTO struct {
	Currency     string         `json:"currency"`
	BaseCurrency string         `json:"baseCurrency"`
	Points       []RatePointDTO `json:"points"`
}

type ChangeDTO struct {
	Currency         string  `json:"currency"`
	ChangePercentage float64 `json:"changePercentage"`
}

type SupportedDTO struct {
	BaseCurrency string   `json:"baseCurrency"`
	Currencies   []string `json:"currencies"`
}

type PartialDTO struct {
	Predictions []PredictionDTO     `json:"predictions"`
	Errors      map[string]ErrorDTO `json:"errors,omitempty"`
}

type ErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SnapshotDTO struct {
	GeneratedAt  time.Time       `json:"generatedAt"`
	BaseCurrency string          `json:"baseCurrency"`
	Predictions  []PredictionDTO `json:"predictions"`
}

type SnapshotRecordDTO struct {
	GeneratedAt  time.Time `json:"generatedAt"`
	BaseCurrency string    `json:"baseCurrency"`
	PredictionDTO
}

func toPredictionDTO(r models.PredictionResult) PredictionDTO {
	return PredictionDTO{
		Currency:         r.Currency,
		CurrentRate:      r.CurrentRate,
		PredictedRate:    r.PredictedRate,
		ChangePercentage: r.ChangePercentage,
		Recommendation:   r.Recommendation,
	}
}

func toPredictionDTOs(rs []models.PredictionResult) []PredictionDTO {
	out := make([]PredictionDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, toPredictionDTO(r))
	}
	return out
}

func toRatePointDTOs(ps []models.RatePoint) []RatePointDTO {
	out := make([]RatePointDTO, 0, len(ps))
	for _, p := range ps {
		out = append(out, RatePointDTO{Date: util.FormatDay(p.Date), Rate: p.Rate})
	}
	return out
}

func toSnapshotDTO(s models.PredictionSnapshot) SnapshotDTO {
	return SnapshotDTO{
		GeneratedAt:  s.GeneratedAt.UTC(),
		BaseCurrency: s.BaseCurrency,
		Predictions:  toPredictionDTOs(s.Predictions),
	}
}

func toSnapshotRecordDTOs(rs []models.SnapshotRecord) []SnapshotRecordDTO {
	out := make([]SnapshotRecordDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, SnapshotRecordDTO{
			GeneratedAt:   r.GeneratedAt.UTC(),
			BaseCurrency:  r.BaseCurrency,
			PredictionDTO: toPredictionDTO(r.Prediction),
		})
	}
	return out
}
