package repository

import (
	"context"

	"QuantBench/internal/domain/models"
	"QuantBench/internal/domain/repository"
	pkgkafka "QuantBench/pkg/kafka"
)

// KafkaRunPublisher announces completed backtest runs on a Kafka topic.
// The payload carries the summary only; trade logs stay in the result store.
type KafkaRunPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaRunPublisher creates a Kafka-backed run publisher.
func NewKafkaRunPublisher(producer *pkgkafka.Producer, topic string) repository.RunPublisher {
	return &KafkaRunPublisher{producer: producer, topic: topic}
}

func (p *KafkaRunPublisher) Publish(ctx context.Context, r *models.BacktestResult) error {
	return p.producer.Publish(ctx, p.topic, []byte(r.RunID), map[string]interface{}{
		"run_id":     r.RunID,
		"strategy":   r.Strategy,
		"regime":     r.Regime,
		"weights":    r.Weights,
		"metrics":    r.Metrics,
		"n_trades":   len(r.Sim.Trades),
		"started_at": r.StartedAt,
		"elapsed_ms": r.ElapsedMS,
	})
}

func (p *KafkaRunPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
