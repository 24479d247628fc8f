package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter shared by every process pointed at the same Redis.
type RateLimiter struct {
	c      *redis.Client
	prefix string
}

func NewRateLimiter(opts Options) *RateLimiter {
	return &RateLimiter{c: newClient(opts), prefix: opts.Prefix}
}

// Allow increments key and (re)arms its TTL in one transaction.
// Returns whether the call fits under limit and the count in the current window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	k := rl.prefix + key
	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	n := incr.Val()
	return n <= limit, n, nil
}

// Count reports the current window's counter without consuming a slot.
func (rl *RateLimiter) Count(ctx context.Context, key string) (int64, error) {
	n, err := rl.c.Get(ctx, rl.prefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "redis ratelimit count")
	}
	return n, nil
}

func (rl *RateLimiter) Close() error {
	return rl.c.Close()
}
