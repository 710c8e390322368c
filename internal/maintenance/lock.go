package maintenance

import (
	"context"
	"errors"
	"time"
)

const lockScope = "maintenance"

// Lock keeps two workers from sweeping at the same time.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type redisLocker interface {
	AcquireLock(ctx context.Context, scope, id string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, scope, id string) error
}

// RedisLock holds the per-environment sweep lock in Redis. The TTL should
// exceed one sweep so a crashed worker frees it on its own.
type RedisLock struct {
	client redisLocker
	id     string
	ttl    time.Duration
	held   bool
}

func NewRedisLock(client redisLocker, env string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}
	if env == "" {
		env = "local"
	}
	return &RedisLock{client: client, id: env, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.AcquireLock(ctx, lockScope, l.id, l.ttl)
	if err != nil {
		return false, err
	}
	l.held = ok
	return ok, nil
}

// Release is a no-op unless this instance won the last Acquire.
func (l *RedisLock) Release(ctx context.Context) error {
	if !l.held {
		return nil
	}
	l.held = false
	return l.client.ReleaseLock(ctx, lockScope, l.id)
}
