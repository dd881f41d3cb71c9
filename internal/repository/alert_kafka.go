package repository

import (
	"context"
	"fmt"

	"GexFlow/internal/domain/models"
	"GexFlow/internal/domain/repository"
	pkgkafka "GexFlow/pkg/kafka"
)

// KafkaAlertPublisher delivers critical alerts to a Kafka topic as JSON.
// Keyed by underlying so one instrument's alerts stay ordered.
type KafkaAlertPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaAlertPublisher(producer *pkgkafka.Producer, topic string) repository.AlertSink {
	return &KafkaAlertPublisher{producer: producer, topic: topic}
}

func (p *KafkaAlertPublisher) Deliver(ctx context.Context, a models.CriticalAlert) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(a.Underlying), a); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}
