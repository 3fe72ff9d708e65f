package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := setup(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	// 1. Acquire Lock
	unlock, err := locker.Lock(ctx, "markov", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:markov"), "Lock key should be set in Redis")

	// 2. Release Lock
	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:markov"), "Lock key should be removed after unlock")
}

func TestRedisLocker_Contention(t *testing.T) {
	_, client := setup(t)
	locker1 := redis.NewLocker(client, "test:")
	locker2 := redis.NewLocker(client, "test:")
	ctx := context.Background()

	// 1. Client 1 acquires lock
	unlock1, err := locker1.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)

	// 2. Client 2 blocks until its context expires
	ctxTimeout, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_, err = locker2.Lock(ctxTimeout, "shared", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// 3. Client 1 unlocks, client 2 succeeds
	require.NoError(t, unlock1(ctx))
	unlock2, err := locker2.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)
	assert.NoError(t, unlock2(ctx))
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	mr, client := setup(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "expiring", time.Second)
	require.NoError(t, err)

	// The lock expires and someone else takes it.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("test:lock:expiring", "other-owner"))

	require.NoError(t, unlock(ctx))
	got, err := mr.Get("test:lock:expiring")
	require.NoError(t, err)
	assert.Equal(t, "other-owner", got)
}
