package usecase

import (
	"context"
	"fmt"
	"time"

	"FxPredict/internal/domain/models"
	drepo "FxPredict/internal/domain/repository"
	applogger "FxPredict/pkg/logger"
)

const (
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
	BackendNone       = "none"
)

// SnapshotBroadcaster receives every snapshot produced, e.g. a websocket hub.
type SnapshotBroadcaster interface {
	Broadcast(models.PredictionSnapshot)
}

// BatchPredictor runs the fail-fast batch.
type BatchPredictor interface {
	BaseCurrency() string
	PredictAll(ctx context.Context) ([]models.PredictionResult, error)
}

// SnapshotProcessor builds snapshots and routes them to the configured backend.
type SnapshotProcessor struct {
	predictor   BatchPredictor
	pub         drepo.SnapshotPublisher
	store       drepo.SnapshotStore
	broadcaster SnapshotBroadcaster
	metrics     drepo.Metrics
	log         *applogger.Logger
	backend     string
	now         func() time.Time
}

// NewSnapshotProcessor validates that the backend named has its dependency wired.
func NewSnapshotProcessor(
	predictor BatchPredictor,
	backend string,
	pub drepo.SnapshotPublisher,
	store drepo.SnapshotStore,
	broadcaster SnapshotBroadcaster,
	metrics drepo.Metrics,
	log *applogger.Logger,
) (*SnapshotProcessor, error) {
	switch backend {
	case BackendKafka:
		if pub == nil {
			return nil, fmt.Errorf("backend %q needs a publisher", backend)
		}
	case BackendClickHouse:
		if store == nil {
			return nil, fmt.Errorf("backend %q needs a store", backend)
		}
	case BackendNone:
	default:
		return nil, fmt.Errorf("unknown backend: %s", backend)
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &SnapshotProcessor{
		predictor:   predictor,
		pub:         pub,
		store:       store,
		broadcaster: broadcaster,
		metrics:     metrics,
		log:         log,
		backend:     backend,
		now:         time.Now,
	}, nil
}

// Run predicts every currency and delivers the snapshot. A failed batch delivers nothing.
func (p *SnapshotProcessor) Run(ctx context.Context) (models.PredictionSnapshot, error) {
	start := time.Now()
	results, err := p.predictor.PredictAll(ctx)
	if err != nil {
		p.recordError("snapshot_predict")
		return models.PredictionSnapshot{}, fmt.Errorf("predict all: %w", err)
	}

	snap := models.PredictionSnapshot{
		GeneratedAt:  p.now().UTC(),
		BaseCurrency: p.predictor.BaseCurrency(),
		Predictions:  results,
	}
	if p.broadcaster != nil {
		p.broadcaster.Broadcast(snap)
	}
	if err := p.Process(ctx, snap); err != nil {
		return snap, err
	}

	if p.metrics != nil {
		p.metrics.RecordLatency("snapshot", time.Since(start).Seconds())
	}
	p.log.Info("snapshot delivered",
		applogger.String("backend", p.backend),
		applogger.Int("predictions", len(results)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return snap, nil
}

// Process routes one snapshot to the configured backend.
func (p *SnapshotProcessor) Process(ctx context.Context, snap models.PredictionSnapshot) error {
	var err error
	switch p.backend {
	case BackendKafka:
		err = p.pub.Publish(ctx, snap)
	case BackendClickHouse:
		err = p.store.Save(ctx, snap)
	case BackendNone:
		return nil
	}
	if err != nil {
		p.recordError("snapshot_" + p.backend)
		return fmt.Errorf("deliver snapshot to %s: %w", p.backend, err)
	}
	if p.metrics != nil {
		p.metrics.RecordSnapshot(p.backend)
	}
	return nil
}

func (p *SnapshotProcessor) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}

// Close releases the publisher.
func (p *SnapshotProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
}
