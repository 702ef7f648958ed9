package resource

import (
	"context"
	"fmt"
	"time"

	"sizefit-service/pkg/config"
	"sizefit-service/pkg/kafka"
	"sizefit-service/pkg/logger"
)

// KafkaResource owns the producer side of the Kafka client.
type KafkaResource struct {
	client *kafka.Client
	topic  string
}

// OpenKafka builds the client and makes sure the job event topic exists.
func OpenKafka(cfg config.KafkaConfig) (*KafkaResource, error) {
	if len(cfg.BootstrapServers) == 0 {
		return nil, fmt.Errorf("kafka bootstrap_servers is required")
	}
	if cfg.Topics.JobEvents == "" {
		return nil, fmt.Errorf("kafka topics.job_events is required")
	}
	client := kafka.New(cfg.BootstrapServers, cfg.ClientID)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.EnsureTopic(ctx, cfg.Topics.JobEvents, 1, 1); err != nil {
		// writers still request auto creation on first write
		logger.Warnf("ensure topic %s failed: %v", cfg.Topics.JobEvents, err)
	}
	return &KafkaResource{client: client, topic: cfg.Topics.JobEvents}, nil
}

func (r *KafkaResource) Client() *kafka.Client { return r.client }

func (r *KafkaResource) Topic() string { return r.topic }

func (r *KafkaResource) Close() {
	if r != nil && r.client != nil {
		r.client.Close()
	}
}
