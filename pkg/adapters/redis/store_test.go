package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := setup(t)
	store := redis.NewFromClient(client)
	ports.RunModelStoreContract(t, store)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := setup(t)

	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()
	name := "model-ttl"

	// 1. Save
	err := store.Save(ctx, name, domain.NewModel(name))
	assert.NoError(t, err)

	// 2. Verify List (immediately)
	names, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Contains(t, names, name)

	// 3. Fast Forward time in miniredis (for Key Expiration)
	mr.FastForward(2 * time.Second)

	// 4. Verify Load (should fail)
	_, err = store.Load(ctx, name)
	assert.ErrorIs(t, err, domain.ErrModelNotFound)

	// 5. Verify List (lazily cleaned up). The index score uses wall time.
	time.Sleep(1200 * time.Millisecond)

	names, err = store.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, names)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := setup(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	err := store.Save(ctx, "my-model", domain.NewModel("my-model"))
	assert.NoError(t, err)

	assert.True(t, mr.Exists("custom:app:my-model"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")

	list, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Contains(t, list, "my-model")
}
