package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// RedisLimiter shares fixed windows between instances through Redis.
type RedisLimiter struct {
	client  redis.Cmdable
	max     int
	window  time.Duration
	nowFunc func() time.Time
}

// NewRedisLimiter allows max requests per key in each window.
func NewRedisLimiter(client redis.Cmdable, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, max: max, window: window, nowFunc: time.Now}
}

// Allow increments the key's counter and starts its window when the key
// has no expiry yet. On error the returned decision allows the request.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	k := redisKeyPrefix + key

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return l.failOpen(fmt.Errorf("redis rate limit: %w", err))
	}

	remaining := ttl.Val()
	if remaining < 0 {
		// PTTL is -1 for a key without expiry: first hit, or a window whose
		// EXPIRE never landed.
		if err := l.client.PExpire(ctx, k, l.window).Err(); err != nil {
			return l.failOpen(fmt.Errorf("redis rate limit expire: %w", err))
		}
		remaining = l.window
	}
	if remaining == 0 {
		remaining = l.window
	}
	count := int(incr.Val())

	d := Decision{
		Allowed: count <= l.max,
		Limit:   l.max,
		ResetAt: l.nowFunc().Add(remaining),
	}
	if d.Allowed {
		d.Remaining = l.max - count
	}
	return d, nil
}

func (l *RedisLimiter) failOpen(err error) (Decision, error) {
	return Decision{Allowed: true, Limit: l.max, Remaining: l.max, ResetAt: l.nowFunc().Add(l.window)}, err
}
