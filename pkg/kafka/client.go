package kafka

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"sizefit-service/pkg/logger"
)

// Message is one record to produce. Headers are written in key order.
type Message struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Client 持有按 topic 复用的 writer，连接在首次写入时建立
type Client struct {
	brokers  []string
	clientID string
	dialer   *kafka.Dialer
	writers  sync.Map // topic -> *kafka.Writer
}

func New(brokers []string, clientID string) *Client {
	c := &Client{
		brokers:  brokers,
		clientID: clientID,
		dialer: &kafka.Dialer{
			Timeout:  10 * time.Second,
			ClientID: clientID,
		},
	}
	logger.Infof("Kafka client opened brokers=%v client_id=%s", c.brokers, c.clientID)
	return c
}

// Close flushes and closes every writer.
func (c *Client) Close() {
	c.writers.Range(func(key, value interface{}) bool {
		if w, ok := value.(*kafka.Writer); ok {
			if err := w.Close(); err != nil {
				logger.Warnf("Kafka writer close failed topic=%v error=%v", key, err)
			}
		}
		return true
	})
}

func (c *Client) writer(topic string) *kafka.Writer {
	if v, ok := c.writers.Load(topic); ok {
		return v.(*kafka.Writer)
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(c.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Transport:              &kafka.Transport{ClientID: c.clientID, DialTimeout: c.dialer.Timeout},
	}
	actual, loaded := c.writers.LoadOrStore(topic, w)
	if loaded {
		_ = w.Close()
	}
	return actual.(*kafka.Writer)
}

// Produce writes one message; messages sharing a key land on the same partition.
func (c *Client) Produce(ctx context.Context, topic string, msg Message) error {
	return c.writer(topic).WriteMessages(ctx, kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers(msg.Headers),
		Time:    time.Now(),
	})
}

func headers(m map[string]string) []kafka.Header {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]kafka.Header, 0, len(keys))
	for _, k := range keys {
		out = append(out, kafka.Header{Key: k, Value: []byte(m[k])})
	}
	return out
}

// EnsureTopic creates the topic through the cluster controller if it does not exist.
func (c *Client) EnsureTopic(ctx context.Context, topic string, numPartitions, replicationFactor int) error {
	if len(c.brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	conn, err := c.dialer.DialContext(ctx, "tcp", c.brokers[0])
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.brokers[0], err)
	}
	defer conn.Close()
	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("find controller: %w", err)
	}
	addr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	cc, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial controller %s: %w", addr, err)
	}
	defer cc.Close()
	return cc.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	})
}
