// Package locks provides per-key mutual exclusion across API instances.
package locks

import (
	"context"
	"errors"

	pkgerrors "github.com/coownly/esign-backend/pkg/errors"
)

// ErrNotAcquired is returned when a lock could not be obtained before the
// context was done.
var ErrNotAcquired = errors.New("lock not acquired")

// Lock coordinates exclusive access to a single key.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Locker hands out blocking locks keyed by an arbitrary resource id.
type Locker interface {
	Obtain(ctx context.Context, key string) (Handle, error)
}

// Handle releases a lock obtained from a Locker.
type Handle interface {
	Release(ctx context.Context) error
}

// DocumentKey is the lock key serializing mutations of one document.
func DocumentKey(documentID string) string {
	return "document:" + documentID
}

// WithLock runs fn while holding key. A nil locker runs fn unguarded; callers
// then rely on row locks alone. Release failures are left to the lock TTL.
// A lock store that fails outright surfaces as a dependency error; a lock that
// stayed busy keeps ErrNotAcquired for the caller to map.
func WithLock(ctx context.Context, locker Locker, key string, fn func() error) error {
	if locker == nil {
		return fn()
	}
	handle, err := locker.Obtain(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotAcquired) {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock store unavailable").
			WithDetails(map[string]any{"lock": key})
	}
	defer func() {
		_ = handle.Release(context.WithoutCancel(ctx))
	}()
	return fn()
}
