package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain_SingleCycle(t *testing.T) {
	tests := []struct {
		name     string
		half     bool
		expected float64
	}{
		{"full reward", false, 10},
		{"half-cycle corrected once", true, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, chain := absorbing(t, "cycle >= 0", "10")
			m.Markov.HalfCycleCorrection = tt.half

			res, err := runtime.NewEngine().Run(context.Background(), m)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, res.Expected[chain][0], 1e-12)
			assert.Equal(t, 1, res.Chains[chain].Cycles)
		})
	}
}

func TestChain_Discounting(t *testing.T) {
	tests := []struct {
		name     string
		half     bool
		start    int
		expected float64
	}{
		{"from cycle 0", false, 0, 1 + 1/1.1 + 1/1.21},
		{"half-cycle first and last", true, 0, 0.5 + 1/1.1 + 0.5/1.21},
		{"start at cycle 1", false, 1, 1 + 1 + 1/1.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, chain := absorbing(t, "t >= 2", "1")
			m.Markov = domain.MarkovSettings{
				HalfCycleCorrection: tt.half,
				DiscountRewards:     true,
				DiscountRates:       []float64{0.1},
				DiscountStartCycle:  tt.start,
			}
			res, err := runtime.NewEngine().Run(context.Background(), m)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, res.Expected[chain][0], 1e-12)
		})
	}
}

func TestChain_Occupancy(t *testing.T) {
	m, chain := wellDead(t, "t >= 2")
	m.CohortSize = 1000

	res, err := runtime.NewEngine().Run(context.Background(), m)
	require.NoError(t, err)
	assert.InDelta(t, 1.75, res.Expected[chain][0], 1e-12)

	trace := res.Chains[chain]
	require.NotNil(t, trace)
	assert.Equal(t, []string{"Well", "Dead"}, trace.States)
	assert.Equal(t, 3, trace.Cycles)
	require.Len(t, trace.Occupancy, 4)
	assert.InDeltaSlice(t, []float64{0.125, 0.875}, trace.Occupancy[3], 1e-12)
	assert.InDeltaSlice(t, []float64{500, 500}, trace.Counts(1), 1e-9)
	assert.Nil(t, trace.Counts(9))
}

func TestChain_RetroactiveHalfCycleAppliesToTrace(t *testing.T) {
	m, chain := wellDead(t, "t >= 2")
	m.Markov.HalfCycleCorrection = true

	res, err := runtime.NewEngine().Run(context.Background(), m)
	require.NoError(t, err)
	// 0.5*1 + 0.5 + 0.5*0.25
	assert.InDelta(t, 1.125, res.Expected[chain][0], 1e-12)

	rewards := res.Chains[chain].Rewards
	require.Len(t, rewards, 3)
	assert.InDelta(t, 0.125, rewards[2][0], 1e-12)
}

func TestChain_VariableUpdates(t *testing.T) {
	m, chain := absorbing(t, "t >= 2", "n")
	m.Variables = []*domain.Variable{{Name: "n", Expression: "0"}}
	chainOf(m, chain).VarUpdatesT0 = "n = 10"
	chainOf(m, chain).VarUpdates = "n = n + 1"

	res, err := runtime.NewEngine().Run(context.Background(), m)
	require.NoError(t, err)
	assert.InDelta(t, 10+11+12, res.Expected[chain][0], 1e-12)
}

func TestChain_TerminationSeesUpdatedVariables(t *testing.T) {
	m, chain := absorbing(t, "n >= 3", "1")
	m.Variables = []*domain.Variable{{Name: "n", Expression: "0"}}
	s := m.Tree.StateIndex(chain, "Alive")
	stateOf(m, s).VarUpdates = "n = n + 1"

	res, err := runtime.NewEngine().Run(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Chains[chain].Cycles)
}

func TestChain_FlowCosts(t *testing.T) {
	m, chain := wellDead(t, "cycle >= 0")
	m.SetDimensions([]string{"QALY", "Cost"})
	toDead := m.Tree.Nodes[m.Tree.StateIndex(chain, "Well")].Children[0]
	setCost(m, toDead, "0", "5")
	setCost(m, chain, "0", "100")
	m.Markov.HalfCycleCorrection = true

	res, err := runtime.NewEngine().Run(context.Background(), m)
	require.NoError(t, err)
	// Flow costs are not half-cycle weighted; the chain cost is added once.
	assert.InDelta(t, 0.5, res.Expected[chain][0], 1e-12)
	assert.InDelta(t, 100+0.5*5, res.Expected[chain][1], 1e-12)
}

func TestChain_OwnCostSeesCycleZero(t *testing.T) {
	m, chain := absorbing(t, "cycle >= 2", "1")
	e := runtime.NewEngine()
	base, err := e.Run(context.Background(), m)
	require.NoError(t, err)

	setCost(m, chain, "cycle + 1")
	report := e.Validate(m)
	require.True(t, report.Checked(), report.Err())

	res, err := e.Run(context.Background(), m)
	require.NoError(t, err)
	assert.InDelta(t, base.Expected[chain][0]+1, res.Expected[chain][0], 1e-12)
}

func TestChain_IterationLimit(t *testing.T) {
	m, _ := absorbing(t, "false", "1")

	_, err := runtime.NewEngine(runtime.WithMaxCycles(5)).Run(context.Background(), m)
	var limit *domain.IterationLimitExceeded
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, 5, limit.Limit)
	assert.Equal(t, "Cohort", limit.Chain)
}

func TestChain_Cancellation(t *testing.T) {
	m, _ := absorbing(t, "false", "1")
	ctx, cancel := context.WithCancel(context.Background())

	hooks := domain.LifecycleHooks{
		OnCycle: func(_ context.Context, e *domain.CycleEvent) {
			if e.Cycle == 3 {
				cancel()
			}
		},
	}
	_, err := runtime.NewEngine(runtime.WithHooks(hooks)).Run(ctx, m)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestChain_MissingTarget(t *testing.T) {
	m, chain := wellDead(t, "t >= 2")
	dead := m.Tree.StateIndex(chain, "Dead")
	m.Tree.Nodes[m.Tree.Nodes[dead].Children[0]].Payload.(*domain.Transition).Target = "Gone"

	_, err := runtime.NewEngine().Run(context.Background(), m)
	var evalErr *domain.EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "to Dead", evalErr.Node)
}
