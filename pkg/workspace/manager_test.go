package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/domain"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowStore simulates latency to provoke lost updates if locking is missing.
type slowStore struct {
	*memory.Store
}

func (s slowStore) Load(ctx context.Context, name string) (*domain.Model, error) {
	time.Sleep(2 * time.Millisecond)
	return s.Store.Load(ctx, name)
}

func addChance(m *domain.Model) error {
	_, err := m.Tree.AddChild(0, domain.KindChance)
	return err
}

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		name := fmt.Sprintf("model-%d", i)
		_ = mgr.Save(ctx, name, domain.NewModel(name))
		_ = mgr.Delete(ctx, name)
	}

	assert.Empty(t, mgr.locks, "locks leaked after Delete")
	assert.Empty(t, mgr.hist, "history leaked after Delete")
}

func TestManager_UpdateSerializes(t *testing.T) {
	mgr := NewManager(slowStore{memory.NewStore()})
	ctx := context.Background()
	require.NoError(t, mgr.Save(ctx, "m", domain.NewModel("m")))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Update(ctx, "m", "add chance", addChance)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	m, err := mgr.Load(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, 11, m.Tree.Len(), "every concurrent edit must survive")
}

func TestManager_UpdateFailureSavesNothing(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()
	require.NoError(t, mgr.Save(ctx, "m", domain.NewModel("m")))

	boom := errors.New("boom")
	_, err := mgr.Update(ctx, "m", "broken", func(m *domain.Model) error {
		_ = addChance(m)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	m, err := mgr.Load(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Tree.Len())

	_, err = mgr.Update(ctx, "missing", "x", addChance)
	assert.ErrorIs(t, err, domain.ErrModelNotFound)
}

func TestManager_UndoRedo(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()
	require.NoError(t, mgr.Save(ctx, "m", domain.NewModel("m")))

	_, err := mgr.Update(ctx, "m", "add chance", addChance)
	require.NoError(t, err)

	label, err := mgr.Undo(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, "add chance", label)
	m, _ := mgr.Load(ctx, "m")
	assert.Equal(t, 1, m.Tree.Len())

	label, err = mgr.Redo(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, "add chance", label)
	m, _ = mgr.Load(ctx, "m")
	assert.Equal(t, 2, m.Tree.Len())

	_, err = mgr.Redo(ctx, "m")
	assert.ErrorIs(t, err, ErrNothingToUndo)
}

func TestManager_SaveKeepsPreviousVersion(t *testing.T) {
	mgr := NewManager(memory.NewStore(), WithHistory(1))
	ctx := context.Background()

	require.NoError(t, mgr.Save(ctx, "m", domain.NewModel("v1")))
	require.NoError(t, mgr.Save(ctx, "m", domain.NewModel("v2")))
	require.NoError(t, mgr.Save(ctx, "m", domain.NewModel("v3")))

	_, err := mgr.Undo(ctx, "m")
	require.NoError(t, err)
	m, _ := mgr.Load(ctx, "m")
	assert.Equal(t, "v2", m.Name)

	_, err = mgr.Undo(ctx, "m")
	assert.ErrorIs(t, err, ErrNothingToUndo, "history is bounded")
}

func TestManager_EvaluateDoesNotSave(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()
	require.NoError(t, mgr.Save(ctx, "m", domain.NewModel("m")))

	err := mgr.Evaluate(ctx, "m", func(ctx context.Context, m *domain.Model) error {
		return addChance(m)
	})
	require.NoError(t, err)

	m, _ := mgr.Load(ctx, "m")
	assert.Equal(t, 1, m.Tree.Len())
}

func TestManager_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	mgr := NewManager(memory.NewStore(), WithLocker(redis.NewLocker(client, "arbor:")), WithLockTTL(time.Second))
	ctx := context.Background()

	err := mgr.WithLock(ctx, "m", func(ctx context.Context) error {
		assert.True(t, mr.Exists("arbor:lock:m"), "lock key should be held inside fn")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("arbor:lock:m"), "lock key should be released")
}
