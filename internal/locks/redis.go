package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

const (
	defaultLockTTL   = 30 * time.Second
	defaultRetryWait = 25 * time.Millisecond
	maxRetryWait     = 250 * time.Millisecond
)

var errBusy = errors.New("lock held by another owner")

// redisStore defines the operations used by RedisLock.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfEquals(ctx context.Context, key, value string) (bool, error)
}

type keyBuilder interface {
	LockKey(scope, id string) string
}

// RedisLock implements Lock using Redis SETNX + TTL.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// Acquire tries to own the lock for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release deletes the key if this lock still owns it. A lock that expired and
// was taken by another owner is left alone.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	owner := l.owner
	l.owner = ""
	if _, err := l.client.DeleteIfEquals(ctx, l.key, owner); err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}

// RedisStore is the client surface RedisLocker needs.
type RedisStore interface {
	redisStore
	keyBuilder
}

// RedisLocker obtains RedisLocks, retrying with capped backoff until the
// context is done.
type RedisLocker struct {
	client RedisStore
	scope  string
	ttl    time.Duration
}

// NewRedisLocker builds a locker whose keys live under the given scope.
func NewRedisLocker(client RedisStore, scope string, ttl time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for locker")
	}
	if scope == "" {
		return nil, errors.New("lock scope is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{client: client, scope: scope, ttl: ttl}, nil
}

// Obtain blocks until the lock for key is held or ctx is done.
func (l *RedisLocker) Obtain(ctx context.Context, key string) (Handle, error) {
	lock, err := NewRedisLock(l.client, l.client.LockKey(l.scope, key), l.ttl)
	if err != nil {
		return nil, err
	}

	b := retry.WithCappedDuration(maxRetryWait, retry.NewExponential(defaultRetryWait))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		ok, err := lock.Acquire(ctx)
		switch {
		case err != nil:
			return err
		case !ok:
			return retry.RetryableError(errBusy)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		}
		return nil, err
	}
	return lock, nil
}
