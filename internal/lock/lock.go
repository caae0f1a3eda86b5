// Package lock provides the cross-process per-car lock taken while an
// operation is being opened.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/logger"
)

type Options struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
	// Wait bounds how long Lock retries before giving up.
	Wait time.Duration
}

// RedisCarLocker implements service.CarLocker on top of redislock.
type RedisCarLocker struct {
	rdb    redis.UniversalClient
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

func NewRedisCarLocker(opts Options) *RedisCarLocker {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return newRedisCarLocker(rdb, opts)
}

func newRedisCarLocker(rdb redis.UniversalClient, opts Options) *RedisCarLocker {
	if opts.TTL <= 0 {
		opts.TTL = 15 * time.Second
	}
	if opts.Wait <= 0 {
		opts.Wait = 2 * time.Second
	}
	return &RedisCarLocker{rdb: rdb, client: redislock.New(rdb), ttl: opts.TTL, wait: opts.Wait}
}

// Ping verifies the Redis connection at startup.
func (l *RedisCarLocker) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

func carKey(carID int32) string {
	return fmt.Sprintf("lock:car:%d", carID)
}

// Lock takes the car lock or fails with car_in_progress when another holder
// keeps it past the wait budget.
func (l *RedisCarLocker) Lock(ctx context.Context, carID int32) (func(), error) {
	key := carKey(carID)
	lock, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), int(l.wait/(50*time.Millisecond))),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, domain.Fail(domain.CodeCarInProgress)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain %s: %w", key, err)
	}

	return func() {
		// A fresh context so the lock is released even when the request was cancelled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.Warn("Failed to release car lock", "key", key, "error", err)
		}
	}, nil
}

func (l *RedisCarLocker) Close() error {
	return l.rdb.Close()
}
