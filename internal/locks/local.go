package locks

import (
	"context"
	"fmt"
	"sync"
)

// LocalLocker serializes callers within one process. Suitable for tests and
// single-instance deployments without Redis.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*localSlot
}

type localSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker returns an empty in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*localSlot)}
}

// Obtain blocks until the lock for key is held or ctx is done.
func (l *LocalLocker) Obtain(ctx context.Context, key string) (Handle, error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &localSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		return &localHandle{locker: l, key: key, slot: slot}, nil
	case <-ctx.Done():
		l.forget(key, slot)
		return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
	}
}

func (l *LocalLocker) forget(key string, slot *localSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

// held reports how many keys currently have waiters or holders.
func (l *LocalLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

type localHandle struct {
	locker *LocalLocker
	key    string
	slot   *localSlot
	once   sync.Once
}

func (h *localHandle) Release(context.Context) error {
	h.once.Do(func() {
		<-h.slot.ch
		h.locker.forget(h.key, h.slot)
	})
	return nil
}
