package locks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	pkgerrors "github.com/coownly/esign-backend/pkg/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return false, f.setErr
	}
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeRedis) DeleteIfEquals(_ context.Context, key, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values[key] != value {
		return false, nil
	}
	delete(f.values, key)
	return true, nil
}

func (f *fakeRedis) LockKey(scope, id string) string {
	return "coown:lock:" + scope + ":" + id
}

func TestRedisLockReleaseKeepsForeignOwner(t *testing.T) {
	store := newFakeRedis()
	lock, err := NewRedisLock(store, "k", time.Second)
	require.NoError(t, err)

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	store.values["k"] = "someone-else"
	require.NoError(t, lock.Release(context.Background()))
	assert.Equal(t, "someone-else", store.values["k"])
}

func TestRedisLockSecondAcquireFails(t *testing.T) {
	store := newFakeRedis()
	first, _ := NewRedisLock(store, "k", time.Second)
	second, _ := NewRedisLock(store, "k", time.Second)

	ok, err := first.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Release(context.Background()))
	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "k", 0)
	assert.Error(t, err)
	_, err = NewRedisLock(newFakeRedis(), "", 0)
	assert.Error(t, err)
}

func TestRedisLockerWaitsForRelease(t *testing.T) {
	store := newFakeRedis()
	locker, err := NewRedisLocker(store, "document", time.Second)
	require.NoError(t, err)

	ctx := context.Background()
	held, err := locker.Obtain(ctx, "doc-1")
	require.NoError(t, err)
	assert.Contains(t, store.values, "coown:lock:document:doc-1")

	acquired := make(chan Handle, 1)
	go func() {
		h, err := locker.Obtain(ctx, "doc-1")
		if err == nil {
			acquired <- h
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second obtain should block while the lock is held")
	case <-time.After(60 * time.Millisecond):
	}

	require.NoError(t, held.Release(ctx))
	h, ok := <-acquired
	require.True(t, ok)
	require.NoError(t, h.Release(ctx))
}

func TestRedisLockerGivesUpWhenContextDone(t *testing.T) {
	store := newFakeRedis()
	locker, err := NewRedisLocker(store, "document", time.Second)
	require.NoError(t, err)

	held, err := locker.Obtain(context.Background(), "doc-1")
	require.NoError(t, err)
	defer held.Release(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	_, err = locker.Obtain(ctx, "doc-1")
	assert.ErrorIs(t, err, ErrNotAcquired)
}

func TestRedisLockerPropagatesStoreError(t *testing.T) {
	store := newFakeRedis()
	store.setErr = errors.New("redis down")
	locker, err := NewRedisLocker(store, "document", time.Second)
	require.NoError(t, err)

	_, err = locker.Obtain(context.Background(), "doc-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAcquired)
}

func TestLocalLockerSerializesSameKey(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := locker.Obtain(ctx, "doc-1")
			if err != nil {
				t.Error(err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			_ = h.Release(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, locker.held())
}

func TestLocalLockerIndependentKeys(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	a, err := locker.Obtain(ctx, "doc-a")
	require.NoError(t, err)
	b, err := locker.Obtain(ctx, "doc-b")
	require.NoError(t, err)

	require.NoError(t, a.Release(ctx))
	require.NoError(t, b.Release(ctx))
	require.NoError(t, b.Release(ctx))
	assert.Equal(t, 0, locker.held())
}

func TestLocalLockerHonorsContext(t *testing.T) {
	locker := NewLocalLocker()
	held, err := locker.Obtain(context.Background(), "doc-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Obtain(ctx, "doc-1")
	assert.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, held.Release(context.Background()))
	assert.Equal(t, 0, locker.held())
}

func TestWithLockReleasesAfterRun(t *testing.T) {
	locker := NewLocalLocker()
	ran := false
	err := WithLock(context.Background(), locker, DocumentKey("doc-1"), func() error {
		ran = true
		if locker.held() != 1 {
			t.Fatalf("expected lock held during fn")
		}
		return errors.New("boom")
	})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected fn error, got %v", err)
	}
	if !ran {
		t.Fatal("fn did not run")
	}
	if locker.held() != 0 {
		t.Fatalf("expected lock released, %d held", locker.held())
	}
}

func TestWithLockNilLockerRunsFn(t *testing.T) {
	ran := false
	if err := WithLock(context.Background(), nil, "k", func() error { ran = true; return nil }); err != nil {
		t.Fatalf("WithLock: %v", err)
	}
	if !ran {
		t.Fatal("fn did not run")
	}
}

func TestWithLockStoreFailureIsDependencyError(t *testing.T) {
	store := newFakeRedis()
	store.setErr = errors.New("redis down")
	locker, err := NewRedisLocker(store, "document", time.Second)
	require.NoError(t, err)

	ran := false
	err = WithLock(context.Background(), locker, DocumentKey("doc-1"), func() error { ran = true; return nil })
	require.Error(t, err)
	assert.False(t, ran)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
	assert.NotErrorIs(t, err, ErrNotAcquired)
}

func TestWithLockBusyKeepsNotAcquired(t *testing.T) {
	locker := NewLocalLocker()
	handle, err := locker.Obtain(context.Background(), "doc-1")
	require.NoError(t, err)
	defer handle.Release(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = WithLock(ctx, locker, "doc-1", func() error { return nil })
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.Nil(t, pkgerrors.As(err))
}
