package domain_test

import (
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	m := domain.NewModel("diff")
	m.Parameters = []*domain.Parameter{{Name: "a", Expression: "1"}, {Name: "gone", Expression: "2"}}
	first := mustAdd(t, m.Tree, 0, domain.KindChance)
	second := mustAdd(t, m.Tree, 0, domain.KindChance)
	old := m.Clone()

	removedID := m.Tree.Nodes[first].ID
	keptID := m.Tree.Nodes[second].ID
	require.NoError(t, m.Tree.RemoveSubtree(first))
	added := mustAdd(t, m.Tree, 0, domain.KindDecision)
	m.Parameters = []*domain.Parameter{{Name: "a", Expression: "3"}}

	d := domain.Diff(old, m)
	require.NotNil(t, d)
	assert.Equal(t, []int{removedID}, d.RemovedNodes)
	assert.Contains(t, d.AddedNodes, m.Tree.Nodes[added].ID)
	assert.Contains(t, d.ChangedNodes, 0, "root children changed")
	assert.NotContains(t, d.ChangedNodes, keptID, "renumbering alone is not a change")
	require.Contains(t, d.Parameters, "a")
	assert.Equal(t, "3", *d.Parameters["a"])
	assert.Nil(t, d.Parameters["gone"])
	assert.Contains(t, d.Parameters, "gone")

	assert.Nil(t, domain.Diff(m, m.Clone()))
}

func TestHistory_UndoRedo(t *testing.T) {
	m := domain.NewModel("history")
	h := domain.NewHistory(2)

	h.Save("Add Node", m)
	mustAdd(t, m.Tree, 0, domain.KindChance)
	h.Save("Add Node", m)
	mustAdd(t, m.Tree, 0, domain.KindChance)
	require.Equal(t, 3, m.Tree.Len())

	m, label, ok := h.Undo(m)
	require.True(t, ok)
	assert.Equal(t, "Add Node", label)
	assert.Equal(t, 2, m.Tree.Len())

	m, _, ok = h.Redo(m)
	require.True(t, ok)
	assert.Equal(t, 3, m.Tree.Len())

	h.Save("Remove", m)
	undo, redo := h.Len()
	assert.Equal(t, 2, undo)
	assert.Equal(t, 0, redo)
}
