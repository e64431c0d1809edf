// Package publisher fans committed audit entries out to downstream consumers.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"vigil/internal/audit"
)

// Producer is the subset of the platform Kafka producer the publisher needs.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// KafkaPublisher implements audit.Sink by writing each entry as JSON keyed
// by entry ID.
type KafkaPublisher struct {
	producer Producer
	topic    string
}

func NewKafka(producer Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, entry audit.Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	return p.producer.Produce(ctx, p.topic, []byte(entry.ID.String()), payload)
}
