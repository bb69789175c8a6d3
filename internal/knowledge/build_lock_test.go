package knowledge

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalBuildLocker(t *testing.T) {
	release, err := LocalBuildLocker{}.Acquire(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.NotPanics(t, release)
}

func newTestRedisLocker(t *testing.T, ttl, wait time.Duration) (*RedisBuildLocker, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisBuildLocker(client, ttl, wait, zap.NewNop()), server
}

func TestRedisBuildLocker_AcquireAndRelease(t *testing.T) {
	locker, server := newTestRedisLocker(t, time.Minute, 300*time.Millisecond)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, server.Exists("pdfchat:lock:index:doc-1"))
	assert.Equal(t, time.Minute, server.TTL("pdfchat:lock:index:doc-1"))

	release()
	assert.False(t, server.Exists("pdfchat:lock:index:doc-1"))

	release, err = locker.Acquire(ctx, "doc-1")
	require.NoError(t, err)
	release()
}

func TestRedisBuildLocker_WaitTimeout(t *testing.T) {
	locker, _ := newTestRedisLocker(t, time.Minute, 300*time.Millisecond)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "doc-1")
	require.NoError(t, err)
	defer release()

	started := time.Now()
	_, err = locker.Acquire(ctx, "doc-1")
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.Less(t, time.Since(started), 5*time.Second)

	// 其他文档不受影响
	other, err := locker.Acquire(ctx, "doc-2")
	require.NoError(t, err)
	other()
}

func TestRedisBuildLocker_WaiterAcquiresAfterRelease(t *testing.T) {
	locker, _ := newTestRedisLocker(t, time.Minute, 5*time.Second)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "doc-1")
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() {
		second, err := locker.Acquire(ctx, "doc-1")
		if err == nil {
			second()
		}
		acquired <- err
	}()

	time.Sleep(150 * time.Millisecond)
	release()

	select {
	case err := <-acquired:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter did not acquire the lock after release")
	}
}

func TestRedisBuildLocker_ReleaseKeepsOtherHoldersLock(t *testing.T) {
	locker, server := newTestRedisLocker(t, time.Second, 300*time.Millisecond)
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, "doc-1")
	require.NoError(t, err)

	// 锁过期后被另一个持有者拿到
	server.FastForward(2 * time.Second)
	current, err := locker.Acquire(ctx, "doc-1")
	require.NoError(t, err)
	token, err := server.Get("pdfchat:lock:index:doc-1")
	require.NoError(t, err)

	stale()
	value, err := server.Get("pdfchat:lock:index:doc-1")
	require.NoError(t, err)
	assert.Equal(t, token, value)

	current()
	assert.False(t, server.Exists("pdfchat:lock:index:doc-1"))
}
