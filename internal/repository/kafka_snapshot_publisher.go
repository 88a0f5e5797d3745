package repository

import (
	"context"

	"FxPredict/internal/domain/models"
	domrepo "FxPredict/internal/domain/repository"
	pkgkafka "FxPredict/pkg/kafka"
)

// KafkaSnapshotPublisher publishes snapshots as JSON keyed by base currency.
type KafkaSnapshotPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSnapshotPublisher(producer *pkgkafka.Producer, topic string) *KafkaSnapshotPublisher {
	return &KafkaSnapshotPublisher{producer: producer, topic: topic}
}

func (p *KafkaSnapshotPublisher) Publish(ctx context.Context, s models.PredictionSnapshot) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.BaseCurrency), s.Message())
}

func (p *KafkaSnapshotPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.SnapshotPublisher = (*KafkaSnapshotPublisher)(nil)
