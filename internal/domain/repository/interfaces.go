package repository

import (
	"context"

	"FxPredict/internal/domain/models"
)

// RateSource provides the live USD rate for a currency.
// Implementations return a *models.PredictionError of kind DATA_SOURCE on failure.
type RateSource interface {
	GetBaseRate(ctx context.Context, currency string) (float64, error)
}

// RateTable fetches the full upstream rate table quoted against base.
type RateTable interface {
	LatestRates(ctx context.Context, base string) (map[string]float64, error)
}

type SnapshotPublisher interface {
	Publish(ctx context.Context, s models.PredictionSnapshot) error
	Close() error
}

type SnapshotStore interface {
	Save(ctx context.Context, s models.PredictionSnapshot) error
	Recent(ctx context.Context, currency string, limit int) ([]models.SnapshotRecord, error)
	Health(ctx context.Context) error
}

type Metrics interface {
	RecordPrediction(currency string, result models.PredictionResult)
	RecordError(kind string)
	RecordSnapshot(backend string)
	RecordLatency(op string, seconds float64)
}
