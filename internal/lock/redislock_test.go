package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/chilisaus/storefront-api/internal/lock"
)

func newLocker(t *testing.T) (*lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &lock.Locker{Client: client, RetryBackoff: time.Millisecond}, mr
}

func TestWithLockRunsCallback(t *testing.T) {
	locker, mr := newLocker(t)

	ran := false
	err := locker.WithLock(t.Context(), "lock:cart:abc", func(context.Context) error {
		ran = true
		require.True(t, mr.Exists("lock:cart:abc"))
		return nil
	})
	require.NoError(t, err)
	require.True(t, ran)
	require.False(t, mr.Exists("lock:cart:abc"))
}

func TestWithLockWaitsForHolder(t *testing.T) {
	locker, mr := newLocker(t)
	mr.Set("lock:cart:abc", "other-holder")

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Millisecond)
	defer cancel()
	err := locker.WithLock(ctx, "lock:cart:abc", func(context.Context) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)

	mr.Del("lock:cart:abc")
	err = locker.WithLock(t.Context(), "lock:cart:abc", func(context.Context) error { return nil })
	require.NoError(t, err)
}

func TestWithLockKeepsForeignToken(t *testing.T) {
	locker, mr := newLocker(t)

	err := locker.WithLock(t.Context(), "lock:cart:abc", func(ctx context.Context) error {
		// Simulate the TTL expiring and another holder taking over.
		mr.Set("lock:cart:abc", "other-holder")
		return nil
	})
	require.NoError(t, err)
	got, err := mr.Get("lock:cart:abc")
	require.NoError(t, err)
	require.Equal(t, "other-holder", got)
}

func TestWithLockRequiresClient(t *testing.T) {
	var locker *lock.Locker
	err := locker.WithLock(t.Context(), "k", func(context.Context) error { return nil })
	require.Error(t, err)
}
