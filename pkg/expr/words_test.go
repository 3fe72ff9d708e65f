package expr_test

import (
	"testing"

	"github.com/aretw0/arbor/pkg/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainsWord(t *testing.T) {
	assert.True(t, expr.ContainsWord("cost", "cost * 2"))
	assert.True(t, expr.ContainsWord("cost", "1+cost"))
	assert.True(t, expr.ContainsWord("cost", "costBasis + cost"))
	assert.False(t, expr.ContainsWord("cost", "costBasis"))
	assert.False(t, expr.ContainsWord("cost", "my_cost"))
	assert.False(t, expr.ContainsWord("cost", "cost2"))
	assert.False(t, expr.ContainsWord("", "cost"))
}

func TestIdentifiers(t *testing.T) {
	ids, err := expr.Identifiers("max(a, b) + tbl[a] * c - true")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "tbl", "c"}, ids)
}

func TestRenameWord(t *testing.T) {
	assert.Equal(t, "alive + aliveCost", expr.RenameWord("well + aliveCost", "well", "alive"))
	assert.Equal(t, "x", expr.RenameWord("x", "y", "z"))
}

func TestOrder(t *testing.T) {
	defs := []expr.Definition{
		{Name: "total", Expression: "a + b"},
		{Name: "a", Expression: "b * 2"},
		{Name: "b", Expression: "1"},
		{Name: "free", Expression: "external + 1"},
	}
	ordered, err := expr.Order(defs)
	require.NoError(t, err)

	var names []string
	for _, d := range ordered {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"b", "a", "total", "free"}, names)

	_, err = expr.Order([]expr.Definition{
		{Name: "x", Expression: "y"},
		{Name: "y", Expression: "x"},
	})
	var cyc *expr.CycleError
	require.ErrorAs(t, err, &cyc)
	assert.Equal(t, []string{"x", "y", "x"}, cyc.Path)
}
