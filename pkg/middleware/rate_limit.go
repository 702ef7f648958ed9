package middleware

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"sizefit-service/pkg/errno"
	"sizefit-service/pkg/logger"
	"sizefit-service/pkg/restapi"
)

// WindowStore counts hits per key in fixed windows.
type WindowStore interface {
	// Allow records one hit and reports whether the key is still within limit,
	// plus how long until the current window resets when it is not.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
}

// ClientKey prefers the address Cloudflare reports over the socket address.
func ClientKey(c *gin.Context) string {
	if ip := strings.TrimSpace(c.GetHeader("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

// RateLimit 按客户端地址限制请求次数，超限返回 429
func RateLimit(store WindowStore, limit int, window time.Duration, prefix string) gin.HandlerFunc {
	if limit <= 0 || store == nil {
		return func(c *gin.Context) { c.Next() }
	}
	if window <= 0 {
		window = time.Minute
	}
	return func(c *gin.Context) {
		key := ClientKey(c)
		if prefix != "" {
			key = prefix + ":" + key
		}
		allowed, retryAfter, err := store.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			logger.Errorf("rate limiter failure key=%s error=%v", key, err)
			restapi.Failed(c, errno.ErrRateLimitUnavailable)
			return
		}
		if !allowed {
			if retryAfter > 0 {
				c.Header("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))
			}
			restapi.Failed(c, errno.ErrTooManyRequests)
			return
		}
		c.Next()
	}
}

// MemoryWindowStore is a process-local WindowStore.
type MemoryWindowStore struct {
	mu      sync.Mutex
	windows map[string]*fixedWindow
	now     func() time.Time
}

type fixedWindow struct {
	count   int
	resetAt time.Time
}

func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{windows: make(map[string]*fixedWindow), now: time.Now}
}

func (s *MemoryWindowStore) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		s.cleanupLocked(now)
		w = &fixedWindow{resetAt: now.Add(window)}
		s.windows[key] = w
	}
	w.count++
	if w.count <= limit {
		return true, 0, nil
	}
	return false, w.resetAt.Sub(now), nil
}

func (s *MemoryWindowStore) cleanupLocked(now time.Time) {
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
		}
	}
}

// WindowCounter is a shared fixed-window counter, see redisclient.Client.
type WindowCounter interface {
	HitWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RedisWindowStore shares counters between instances through Redis.
type RedisWindowStore struct {
	counter WindowCounter
}

func NewRedisWindowStore(counter WindowCounter) *RedisWindowStore {
	return &RedisWindowStore{counter: counter}
}

func (s *RedisWindowStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	count, ttl, err := s.counter.HitWindow(ctx, key, window)
	if err != nil {
		return false, 0, err
	}
	if count <= int64(limit) {
		return true, 0, nil
	}
	if ttl <= 0 {
		ttl = window
	}
	return false, ttl, nil
}
