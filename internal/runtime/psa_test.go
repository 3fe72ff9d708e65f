package runtime_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outcomes(its []runtime.IterationResult, branch, dim int) []float64 {
	out := make([]float64, len(its))
	for i, it := range its {
		out[i] = it.Branches[branch].Values[dim]
	}
	return out
}

func TestRunPSA_CommonRandomNumbers(t *testing.T) {
	m := strategies(t)
	s := runtime.Settings{Iterations: 20, CRN1: true, Seed1: 7, SampleParams: true}
	e := runtime.NewEngine()

	first, err := e.RunPSA(context.Background(), m, s)
	require.NoError(t, err)
	second, err := e.RunPSA(context.Background(), m, s)
	require.NoError(t, err)
	assert.Equal(t, outcomes(first, 0, 1), outcomes(second, 0, 1))

	for i, it := range first {
		assert.Equal(t, i, it.Index)
		// Both strategies see the same draw of p.
		assert.InDelta(t, it.Branches[0].Values[1]+0.2, it.Branches[1].Values[1], 1e-12)
		assert.InDelta(t, it.Params[0], it.Branches[0].Values[1], 1e-12)
	}

	s.Seed1 = 8
	other, err := e.RunPSA(context.Background(), m, s)
	require.NoError(t, err)
	assert.NotEqual(t, outcomes(first, 0, 1), outcomes(other, 0, 1))
}

// pDraws runs a sampled scenario with the given cTreat override and
// returns the draw of p at each iteration.
func pDraws(t *testing.T, updates string, crn bool) (p, cTreat []float64) {
	t.Helper()
	sc := &domain.Scenario{Name: updates, ObjectUpdates: updates, NumIterations: 12,
		SampleParams: true, CRN1: crn, Seed1: 21}
	res, err := runtime.NewEngine().RunScenario(context.Background(), strategies(t), sc)
	require.NoError(t, err)
	for _, it := range res.Iterations {
		p = append(p, it.Params[0])
		cTreat = append(cTreat, it.Params[1])
	}
	return p, cTreat
}

func TestRunScenario_CRNSharesDrawsAcrossVariants(t *testing.T) {
	frozenP, frozenCost := pDraws(t, "cTreat = Uniform(0, 1000)", true)
	fixedP, fixedCost := pDraws(t, "cTreat = 50", true)

	assert.NotEqual(t, frozenCost, fixedCost, "the variants differ")
	assert.Equal(t, fixedP, frozenP, "p is drawn from (seed, iteration) in both variants")
}

func TestRunScenario_WithoutCRNDrawsDiverge(t *testing.T) {
	// Freezing the stochastic override consumes a draw before the
	// iterations start, so the unseeded stream shifts.
	frozenP, _ := pDraws(t, "cTreat = Uniform(0, 1000)", false)
	fixedP, _ := pDraws(t, "cTreat = 50", false)

	require.Len(t, frozenP, len(fixedP))
	assert.NotEqual(t, fixedP[0], frozenP[0])
	assert.NotEqual(t, fixedP, frozenP)
}

func TestRunPSA_ParallelMatchesSequential(t *testing.T) {
	m := strategies(t)
	s := runtime.Settings{Iterations: 40, CRN1: true, Seed1: 3, SampleParams: true}
	e := runtime.NewEngine()

	seq, err := e.RunPSA(context.Background(), m, s)
	require.NoError(t, err)

	s.Workers = 4
	par, err := e.RunPSA(context.Background(), m, s)
	require.NoError(t, err)
	assert.Equal(t, outcomes(seq, 1, 0), outcomes(par, 1, 0))
	assert.Equal(t, outcomes(seq, 0, 1), outcomes(par, 0, 1))
}

func TestRunPSA_ParallelWithoutCRNIsReproducible(t *testing.T) {
	m := strategies(t)
	m.Seed = 11
	s := runtime.Settings{Iterations: 16, SampleParams: true, Workers: 3}
	e := runtime.NewEngine()

	a, err := e.RunPSA(context.Background(), m, s)
	require.NoError(t, err)
	b, err := e.RunPSA(context.Background(), m, s)
	require.NoError(t, err)
	assert.Equal(t, outcomes(a, 0, 1), outcomes(b, 0, 1))
}

func TestRunPSA_FixedParameters(t *testing.T) {
	m := strategies(t)
	its, err := runtime.NewEngine().RunPSA(context.Background(), m, runtime.Settings{Iterations: 5})
	require.NoError(t, err)
	for _, v := range outcomes(its, 0, 1) {
		assert.InDelta(t, 0.5, v, 1e-12)
	}
	assert.True(t, m.Parameter("p").Value.IsZero(), "iterations run on clones")
}

func TestRunPSA_ParamSets(t *testing.T) {
	m := strategies(t)
	m.ParamSets = [][]float64{{0.1, 100}, {0.3, 200}}

	its, err := runtime.NewEngine().RunPSA(context.Background(), m, runtime.Settings{Iterations: 2, UseParamSets: true})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.1, 0.3}, outcomes(its, 0, 1), 1e-12)
	assert.InDeltaSlice(t, []float64{100, 200}, outcomes(its, 1, 0), 1e-12)

	_, err = runtime.NewEngine().RunPSA(context.Background(), m, runtime.Settings{Iterations: 3, UseParamSets: true})
	assert.Error(t, err)
}

func TestRunPSA_SinkAndHooks(t *testing.T) {
	m := strategies(t)
	var recorded, iterations atomic.Int32
	sink := runtime.SinkFunc(func(_ context.Context, model string, it runtime.IterationResult) error {
		assert.Equal(t, "strategies", model)
		recorded.Add(1)
		return nil
	})
	hooks := domain.LifecycleHooks{
		OnIteration: func(_ context.Context, e *domain.IterationEvent) {
			assert.Equal(t, 6, e.Total)
			assert.Contains(t, e.Outcomes, "Treat")
			iterations.Add(1)
		},
	}
	s := runtime.Settings{Iterations: 6, SampleParams: true, Workers: 2, Sink: sink}
	_, err := runtime.NewEngine(runtime.WithHooks(hooks)).RunPSA(context.Background(), m, s)
	require.NoError(t, err)
	assert.EqualValues(t, 6, recorded.Load())
	assert.EqualValues(t, 6, iterations.Load())
}

func TestRunPSA_Cancelled(t *testing.T) {
	m := strategies(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runtime.NewEngine().RunPSA(ctx, m, runtime.Settings{Iterations: 3})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummarize(t *testing.T) {
	m := strategies(t)
	its, err := runtime.NewEngine().RunPSA(context.Background(), m, runtime.Settings{
		Iterations: 400, CRN1: true, Seed1: 1, SampleParams: true,
	})
	require.NoError(t, err)

	sum := runtime.Summarize(its)
	require.Len(t, sum, 2)
	assert.Equal(t, "None", sum[0].Name)
	effect := sum[0].Dims[1]
	assert.InDelta(t, 0.5, effect.Mean, 0.05)
	assert.InDelta(t, 0.025, effect.Lower, 0.02)
	assert.InDelta(t, 0.975, effect.Upper, 0.02)
	assert.Equal(t, len(its), sum[0].Wins+sum[1].Wins)
	assert.Nil(t, runtime.Summarize(nil))
}

func TestRunScenario(t *testing.T) {
	m := strategies(t)
	sc := &domain.Scenario{Name: "cheap", ObjectUpdates: "cTreat = 10", NumIterations: 1,
		AnalysisType: domain.AnalysisCEA, CostDim: 0, EffectDim: 1, WTP: 1000}

	res, err := runtime.NewEngine().RunScenario(context.Background(), m, sc)
	require.NoError(t, err)
	require.NotNil(t, res.Result)
	treat, _ := res.Result.Branch("Treat")
	assert.InDelta(t, 10.0, treat.Values[0], 1e-12)
	assert.Equal(t, "100", m.Parameter("cTreat").Expression, "model untouched")
	assert.Empty(t, sc.Updates, "scenario untouched")
}

func TestRunScenario_PSAFreezesOverrides(t *testing.T) {
	m := strategies(t)
	sc := &domain.Scenario{Name: "uncertain", ObjectUpdates: "cTreat = Uniform(0, 1000)",
		NumIterations: 10, SampleParams: true, CRN1: true, Seed1: 5,
		AnalysisType: domain.AnalysisCEA, CostDim: 0, EffectDim: 1, WTP: 1000}

	res, err := runtime.NewEngine().RunScenario(context.Background(), m, sc)
	require.NoError(t, err)
	require.Len(t, res.Iterations, 10)
	require.Len(t, res.Summary, 2)

	costs := outcomes(res.Iterations, 1, 0)
	for _, c := range costs {
		assert.Equal(t, costs[0], c, "overridden parameter is drawn once")
	}
}

func TestRunScenario_BadOverride(t *testing.T) {
	m := strategies(t)
	_, err := runtime.NewEngine().RunScenario(context.Background(), m, &domain.Scenario{Name: "bad", ObjectUpdates: "nope = 1"})
	assert.Error(t, err)
}
