package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"sizefit-service/ddd/domain/gateway"
	"sizefit-service/pkg/kafka"
)

type captureProducer struct {
	topic   string
	key     []byte
	value   []byte
	headers map[string]string
	err     error
}

func (c *captureProducer) Produce(_ context.Context, topic string, msg kafka.Message) error {
	c.topic, c.key, c.value, c.headers = topic, msg.Key, msg.Value, msg.Headers
	return c.err
}

func TestKafkaPublisherKeysByJob(t *testing.T) {
	p := &captureProducer{}
	pub := NewKafkaPublisher(p, "sizefit.job.events", 0)
	err := pub.Publish(context.Background(), gateway.JobEvent{
		Type:     gateway.JobEventDone,
		JobID:    "job-1",
		Status:   "Done",
		Progress: 100,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if p.topic != "sizefit.job.events" || string(p.key) != "job-1" {
		t.Fatalf("unexpected topic/key %s %s", p.topic, p.key)
	}
	if p.headers["event_type"] != gateway.JobEventDone {
		t.Fatalf("unexpected headers %v", p.headers)
	}
	var got gateway.JobEvent
	if err := json.Unmarshal(p.value, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.Type != gateway.JobEventDone || got.Progress != 100 || got.OccurredAt.IsZero() {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestKafkaPublisherWrapsError(t *testing.T) {
	broker := errors.New("broker down")
	pub := NewKafkaPublisher(&captureProducer{err: broker}, "t", 0)
	err := pub.Publish(context.Background(), gateway.JobEvent{Type: gateway.JobEventFailed, JobID: "x"})
	if !errors.Is(err, broker) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
}
