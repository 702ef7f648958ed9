package resource

import (
	"context"

	"sizefit-service/pkg/config"
	"sizefit-service/pkg/logger"
	"sizefit-service/pkg/redisclient"
)

// RedisResource manages the lifecycle of the shared Redis client.
type RedisResource struct {
	client *redisclient.Client
}

// OpenRedis establishes the Redis connection.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*RedisResource, error) {
	client, err := redisclient.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Infof("Redis resource initialized addr=%s db=%d", cfg.GetRedisAddr(), cfg.DB)
	return &RedisResource{client: client}, nil
}

// Close tidy ups the underlying Redis client.
func (r *RedisResource) Close() {
	if r != nil && r.client != nil {
		_ = r.client.Close()
	}
}

// Client exposes the shared client.
func (r *RedisResource) Client() *redisclient.Client {
	if r == nil {
		return nil
	}
	return r.client
}
