package attempt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "la:"

// RedisOptions configures a RedisLimiter.
type RedisOptions struct {
	Window    time.Duration
	Threshold int
}

// RedisLimiter keeps counters in Redis so several processes share one view
// of failed attempts. Each write restarts the key's TTL.
type RedisLimiter struct {
	redis     redis.UniversalClient
	window    time.Duration
	threshold int
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter wraps an existing client.
func NewRedisLimiter(client redis.UniversalClient, opts RedisOptions) *RedisLimiter {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	return &RedisLimiter{redis: client, window: opts.Window, threshold: opts.Threshold}
}

func (l *RedisLimiter) key(identity string) string {
	return redisKeyPrefix + identity
}

// RecordFailure increments the counter and resets its expiry in one
// transaction.
func (l *RedisLimiter) RecordFailure(ctx context.Context, identity string) error {
	key := l.key(identity)
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, l.window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Evict deletes the identity's counter.
func (l *RedisLimiter) Evict(ctx context.Context, identity string) error {
	if err := l.redis.Del(ctx, l.key(identity)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Attempts returns the current counter, zero when absent.
func (l *RedisLimiter) Attempts(ctx context.Context, identity string) (int, error) {
	count, err := l.redis.Get(ctx, l.key(identity)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return int(count), nil
}

// HasExceededLimit reports whether the counter has reached the threshold.
func (l *RedisLimiter) HasExceededLimit(ctx context.Context, identity string) (bool, error) {
	count, err := l.Attempts(ctx, identity)
	if err != nil {
		return false, err
	}
	return count >= l.threshold, nil
}
