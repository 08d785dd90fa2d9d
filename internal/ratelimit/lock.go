package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another runner owns the key.
var ErrLockHeld = errors.New("lock_held")

// Locker hands out TTL-bound mutual exclusion tokens. A nil Locker, or one
// built without a client, grants every request.
type Locker struct {
	client *redislock.Client
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return &Locker{}
	}
	return &Locker{client: redislock.New(client)}
}

// Enabled reports whether locks are actually coordinated through Redis.
func (l *Locker) Enabled() bool {
	return l != nil && l.client != nil
}

// Obtain takes key for ttl without retrying. The returned release func is
// always safe to call.
func (l *Locker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !l.Enabled() {
		return noop, nil
	}
	if key == "" {
		return noop, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return noop, errors.New("lock ttl must be positive")
	}

	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return noop, ErrLockHeld
	}
	if err != nil {
		return noop, err
	}
	return func(ctx context.Context) error {
		err := lock.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			return nil
		}
		return err
	}, nil
}
