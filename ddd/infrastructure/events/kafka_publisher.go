package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sizefit-service/ddd/domain/gateway"
	"sizefit-service/pkg/kafka"
)

// producer is the subset of the kafka client the publisher needs.
type producer interface {
	Produce(ctx context.Context, topic string, msg kafka.Message) error
}

// KafkaPublisher 将任务事件写入 Kafka，按 job id 分区
type KafkaPublisher struct {
	producer producer
	topic    string
	timeout  time.Duration
}

var _ gateway.JobEventPublisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(p producer, topic string, timeout time.Duration) *KafkaPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KafkaPublisher{producer: p, topic: topic, timeout: timeout}
}

func (k *KafkaPublisher) Publish(ctx context.Context, event gateway.JobEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal job event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	msg := kafka.Message{
		Key:   []byte(event.JobID),
		Value: payload,
		Headers: map[string]string{
			"event_type":   event.Type,
			"content_type": "application/json",
		},
	}
	if err := k.producer.Produce(ctx, k.topic, msg); err != nil {
		return fmt.Errorf("produce %s to %s: %w", event.Type, k.topic, err)
	}
	return nil
}
