package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter bounds sends per user per request with a fixed window
// counter in Redis (INCR + EXPIRE on first hit).
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisRateLimiter creates a limiter allowing limit sends per window.
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, limit: limit, window: window}
}

// Allow reports whether one more send fits in the current window.
func (l *RedisRateLimiter) Allow(ctx context.Context, uid, requestID string) (bool, error) {
	key := fmt.Sprintf("chat:rate:%s:%s", uid, requestID)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("error incrementing rate key: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("error setting rate key expiry: %w", err)
		}
	}

	return count <= int64(l.limit), nil
}
