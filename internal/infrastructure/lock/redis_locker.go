package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config holds lock settings
type Config struct {
	Prefix  string
	TTL     time.Duration
	Wait    time.Duration
	Backoff time.Duration
}

// RedisLocker implements port.PathLocker with redislock
type RedisLocker struct {
	client *redislock.Client
	config Config
	logger *zap.Logger
}

// NewRedisLocker creates a locker on an existing redis client
func NewRedisLocker(rdb redis.UniversalClient, cfg Config, logger *zap.Logger) *RedisLocker {
	if cfg.Prefix == "" {
		cfg.Prefix = "invoice-intake:folder:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 10 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		config: cfg,
		logger: logger,
	}
}

// Lock obtains the lock for key, retrying until the wait budget runs out.
// The returned release func is safe to call even when err is not nil.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	noop := func() {}

	waitCtx, cancel := context.WithTimeout(ctx, l.config.Wait)
	defer cancel()

	lk, err := l.client.Obtain(waitCtx, l.config.Prefix+key, l.config.TTL, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.config.Backoff),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return noop, fmt.Errorf("lock %s is held elsewhere: %w", key, err)
	}
	if err != nil {
		return noop, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := lk.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("Failed to release lock",
				zap.String("key", key),
				zap.Error(err))
		}
	}, nil
}
