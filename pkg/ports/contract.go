package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// contractModel builds a small decision with one chance split.
func contractModel(t *testing.T, name string) *domain.Model {
	t.Helper()
	m := domain.NewModel(name, "Cost", "QALY")
	m.Parameters = []*domain.Parameter{{Name: "pCure", Expression: "0.7"}}
	treat, err := m.Tree.AddChild(0, domain.KindChance)
	require.NoError(t, err)
	m.Tree.Nodes[treat].Name = "Treat"
	cure, err := m.Tree.AddChild(treat, domain.KindChance)
	require.NoError(t, err)
	m.Tree.Nodes[cure].Prob = "pCure"
	fail, err := m.Tree.AddChild(treat, domain.KindChance)
	require.NoError(t, err)
	m.Tree.Nodes[fail].Prob = domain.Complement
	return m
}

// RunModelStoreContract runs a suite of tests to verify that a ModelStore implementation
// adheres to the defined interface contract.
func RunModelStoreContract(t *testing.T, store ModelStore) {
	ctx := context.Background()
	name := "contract-model-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		// 1. Create a model
		m := contractModel(t, name)

		// 2. Save
		err := store.Save(ctx, name, m)
		require.NoError(t, err, "Save should not return error")

		// 3. Load
		loaded, err := store.Load(ctx, name)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, name, loaded.Name)
		assert.Equal(t, m.Tree.Len(), loaded.Tree.Len())
		assert.Equal(t, "pCure", loaded.Tree.Nodes[2].Prob)
		assert.Equal(t, m.Dimensions.Names, loaded.Dimensions.Names)
		require.NotNil(t, loaded.Parameter("pCure"))
	})

	t.Run("Load Is Isolated", func(t *testing.T) {
		loaded, err := store.Load(ctx, name)
		require.NoError(t, err)
		loaded.Tree.Nodes[2].Prob = "0.1"

		again, err := store.Load(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, "pCure", again.Tree.Nodes[2].Prob, "mutating a loaded model must not change the store")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+name)
		assert.ErrorIs(t, err, domain.ErrModelNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		// Setup
		err := store.Save(ctx, name, contractModel(t, name))
		require.NoError(t, err)

		// Delete
		err = store.Delete(ctx, name)
		require.NoError(t, err, "Delete should not return error")

		// Verify gone
		_, err = store.Load(ctx, name)
		assert.ErrorIs(t, err, domain.ErrModelNotFound, "Load after Delete should return ErrModelNotFound")
	})

	t.Run("List", func(t *testing.T) {
		// Setup: Create 2 models
		id1 := name + "-1"
		id2 := name + "-2"
		require.NoError(t, store.Save(ctx, id1, contractModel(t, id1)))
		require.NoError(t, store.Save(ctx, id2, contractModel(t, id2)))

		// Ensure cleanup
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		names, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, names, id1)
		assert.Contains(t, names, id2)
	})
}

// RunResultStoreContract verifies a ResultStore implementation.
func RunResultStoreContract(t *testing.T, store ResultStore) {
	ctx := context.Background()
	model := "contract-results-" + time.Now().Format("20060102150405")

	it := func(i int, cost float64) runtime.IterationResult {
		return runtime.IterationResult{
			Index: i,
			Branches: []runtime.Branch{
				{Index: 1, Name: "Treat", Values: []float64{cost, 0.5}, Chosen: true},
				{Index: 4, Name: "Wait", Values: []float64{0, 0.25}},
			},
			Params: []float64{cost / 100},
		}
	}

	t.Run("Record and Read Back", func(t *testing.T) {
		// Out of order on purpose: parallel PSA records as workers finish.
		for _, i := range []int{2, 0, 1} {
			require.NoError(t, store.Record(ctx, model, it(i, float64(i*10))))
		}
		got, err := store.Iterations(ctx, model)
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i, r := range got {
			assert.Equal(t, i, r.Index)
			assert.Equal(t, it(i, float64(i*10)), r)
		}
	})

	t.Run("Unknown Model", func(t *testing.T) {
		got, err := store.Iterations(ctx, "non-existent-"+model)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, store.Clear(ctx, model))
		got, err := store.Iterations(ctx, model)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
