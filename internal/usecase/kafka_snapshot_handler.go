package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FxPredict/internal/domain/models"
	domrepo "FxPredict/internal/domain/repository"
	pkgkafka "FxPredict/pkg/kafka"
)

// KafkaSnapshotHandler consumes snapshot messages and writes them to the store.
type KafkaSnapshotHandler struct {
	topic   string
	store   domrepo.SnapshotStore
	metrics domrepo.Metrics
}

func NewKafkaSnapshotHandler(topic string, store domrepo.SnapshotStore, metrics domrepo.Metrics) *KafkaSnapshotHandler {
	return &KafkaSnapshotHandler{topic: topic, store: store, metrics: metrics}
}

func (h *KafkaSnapshotHandler) Topic() string { return h.topic }

// Handle decodes one snapshot message; undecodable payloads are rejected without a store call.
func (h *KafkaSnapshotHandler) Handle(ctx context.Context, b []byte) error {
	var m models.SnapshotMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.recordError("consumer_unmarshal")
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if m.GeneratedAt == 0 || len(m.Predictions) == 0 {
		h.recordError("consumer_invalid")
		return fmt.Errorf("snapshot message missing generated_at or predictions")
	}
	snap := m.Snapshot()
	if h.metrics != nil {
		h.metrics.RecordLatency("snapshot_ingest_lag", time.Since(snap.GeneratedAt).Seconds())
	}

	start := time.Now()
	err := h.store.Save(ctx, snap)
	if h.metrics != nil {
		h.metrics.RecordLatency("ch_insert", time.Since(start).Seconds())
	}
	if err != nil {
		h.recordError("consumer_store")
		return err
	}
	if h.metrics != nil {
		h.metrics.RecordSnapshot(BackendClickHouse)
	}
	return nil
}

func (h *KafkaSnapshotHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

var _ pkgkafka.MessageHandler = (*KafkaSnapshotHandler)(nil)
