// Package lock provides a Redis-backed core.Locker so that provisioning of
// one sales order is serialized across server processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"

	"github.com/warp/orderflow/core"
)

// DefaultTTL bounds how long a crashed holder can block a key.
const DefaultTTL = 30 * time.Second

// RedisLocker obtains short-lived Redis locks. A held key fails fast with
// core.ErrLockHeld; callers decide whether to retry.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	prefix string
	log    *logrus.Entry
}

// NewRedisLocker wraps a go-redis client. *redis.Client satisfies
// redislock.RedisClient.
func NewRedisLocker(rdb redislock.RedisClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
		prefix: "orderflow:lock:",
		log:    logrus.WithField("component", "lock"),
	}
}

func (l *RedisLocker) SetLogger(e *logrus.Entry) { l.log = e }

// Lock obtains key. The returned func releases it.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	full := l.prefix + key
	lk, err := l.client.Obtain(ctx, full, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		l.log.WithField("key", full).Warn("lock held by another process")
		return nil, fmt.Errorf("%w: %s", core.ErrLockHeld, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}

	return func() {
		// Release with a fresh context: ctx may already be cancelled.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lk.Release(rctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.log.WithError(err).WithField("key", full).Warn("failed to release lock")
		}
	}, nil
}

var _ core.Locker = (*RedisLocker)(nil)
