package repository

import (
	"context"

	"daytrade/internal/domain/models"
	domrepo "daytrade/internal/domain/repository"
	pkgkafka "daytrade/pkg/kafka"
)

// KafkaPublisher emits bar and pipeline events to Kafka. Messages are
// keyed by symbol so per-symbol ordering holds within a partition.
type KafkaPublisher struct {
	producer   *pkgkafka.Producer
	barTopic   string
	eventTopic string
}

// NewKafkaPublisher creates a Kafka-backed publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, barTopic, eventTopic string) domrepo.Publisher {
	return &KafkaPublisher{producer: producer, barTopic: barTopic, eventTopic: eventTopic}
}

func barPayload(b *models.Bar) map[string]interface{} {
	return map[string]interface{}{
		"symbol":    b.Symbol,
		"date":      b.Date.Format("2006-01-02"),
		"open":      b.Open,
		"high":      b.High,
		"low":       b.Low,
		"close":     b.Close,
		"adj_close": b.AdjClose,
		"volume":    b.Volume,
	}
}

func (p *KafkaPublisher) PublishBar(ctx context.Context, b *models.Bar) error {
	return p.producer.Publish(ctx, p.barTopic, []byte(b.Symbol), barPayload(b))
}

func (p *KafkaPublisher) PublishBars(ctx context.Context, bars models.Bars) error {
	if len(bars) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(bars))
	for i := range bars {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(bars[i].Symbol),
			Value: barPayload(&bars[i]),
		}
	}
	return p.producer.PublishBatch(ctx, p.barTopic, msgs)
}

func (p *KafkaPublisher) PublishEvent(ctx context.Context, event string, payload interface{}) error {
	return p.producer.Publish(ctx, p.eventTopic, []byte(event), map[string]interface{}{
		"event":   event,
		"payload": payload,
	})
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
