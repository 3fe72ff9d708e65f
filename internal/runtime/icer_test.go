package runtime_test

import (
	"testing"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func branch(name string, cost, effect float64) runtime.Branch {
	return runtime.Branch{Name: name, Values: []float64{cost, effect}}
}

func TestComputeICER(t *testing.T) {
	branches := []runtime.Branch{
		branch("A", 0, 0),
		branch("B", 100, 0.5),
		branch("C", 250, 1.0),
		branch("D", 200, 1.5),
	}
	rows, err := runtime.ComputeICER(branches, 0, 1, "", 200)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	a, b, c, d := rows[0], rows[1], rows[2], rows[3]
	assert.True(t, a.Comparator)
	assert.True(t, a.Undefined)

	assert.True(t, c.Dominated, "C costs more than D for less effect")
	assert.True(t, b.ExtendedDominated, "B lies above the A-D frontier")
	assert.False(t, d.Dominated || d.ExtendedDominated)

	assert.InDelta(t, 200.0, b.Ratio, 1e-9)
	assert.InDelta(t, 200/1.5, d.Ratio, 1e-9)
	assert.InDelta(t, 200/1.5, d.FrontierRatio, 1e-9)
	assert.InDelta(t, 1.5*200-200, d.NMB, 1e-9)
}

func TestComputeICER_NamedComparator(t *testing.T) {
	branches := []runtime.Branch{branch("Cheap", 10, 1), branch("Usual", 50, 2), branch("New", 90, 2)}

	rows, err := runtime.ComputeICER(branches, 0, 1, "Usual", 0)
	require.NoError(t, err)
	assert.True(t, rows[1].Comparator)
	assert.InDelta(t, 40.0, rows[0].Ratio, 1e-9)
	assert.True(t, rows[2].Undefined, "no incremental effect")
	assert.True(t, rows[2].Dominated)

	rows, err = runtime.ComputeICER(branches, 0, 1, "Unknown", 0)
	require.NoError(t, err)
	assert.True(t, rows[0].Comparator, "falls back to the cheapest branch")
}

func TestComputeICER_Empty(t *testing.T) {
	rows, err := runtime.ComputeICER(nil, 0, 1, "", 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestComputeICER_DimensionOutOfRange(t *testing.T) {
	branches := []runtime.Branch{branch("Usual", 10, 1), branch("New", 30, 2)}

	_, err := runtime.ComputeICER(branches, 0, 5, "", 0)
	require.ErrorIs(t, err, domain.ErrDimensionOutOfRange)

	_, err = runtime.ComputeICER(branches, -1, 1, "", 0)
	require.ErrorIs(t, err, domain.ErrDimensionOutOfRange)
}
