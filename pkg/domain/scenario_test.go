package domain_test

import (
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioModel() *domain.Model {
	m := domain.NewModel("scenarios", "Cost", "QALY")
	m.Parameters = []*domain.Parameter{
		{Name: "p1", Expression: "1"},
		{Name: "p2", Expression: "p1 * 3"},
	}
	m.Variables = []*domain.Variable{
		{Name: "v1", Expression: "0"},
	}
	return m
}

func TestScenario_BaseCase(t *testing.T) {
	m := scenarioModel()
	sc := &domain.Scenario{Name: "base"}

	require.NoError(t, sc.ParseUpdates("", m))
	assert.True(t, sc.BaseCase)
	assert.Empty(t, sc.Updates)

	require.NoError(t, sc.ApplyUpdates(m))
	require.NoError(t, sc.OverwriteParams(m))
	assert.Equal(t, "1", m.Parameter("p1").Expression)
	assert.Equal(t, "p1 * 3", m.Parameter("p2").Expression)
	assert.Equal(t, "0", m.Variable("v1").Expression)
	assert.False(t, m.Parameter("p1").Locked)
}

func TestScenario_OverwriteParamsLocks(t *testing.T) {
	m := scenarioModel()
	sc := &domain.Scenario{Name: "high"}
	require.NoError(t, sc.ParseUpdates("p1=2", m))
	require.Len(t, sc.Updates, 1)
	assert.Equal(t, domain.Update{
		Target:     domain.TargetParameter,
		Name:       "p1",
		Expression: "2",
		TestValue:  expr.Number(2),
	}, sc.Updates[0])

	require.NoError(t, sc.OverwriteParams(m))

	p1 := m.Parameter("p1")
	assert.True(t, p1.Locked)
	assert.Equal(t, expr.Number(2), p1.Value)
	assert.Equal(t, "1", p1.Expression)

	v, err := expr.EvaluateFloat("p2", m, false)
	require.NoError(t, err)
	assert.Equal(t, 6.0, v)
}

func TestScenario_ApplyUpdatesRewritesExpressions(t *testing.T) {
	m := scenarioModel()
	sc := &domain.Scenario{Name: "high"}
	require.NoError(t, sc.ParseUpdates("p1=2", m))

	require.NoError(t, sc.ApplyUpdates(m))

	p1 := m.Parameter("p1")
	assert.Equal(t, "2", p1.Expression)
	assert.False(t, p1.Locked)
}

func TestScenario_ParseDoesNotMutate(t *testing.T) {
	m := scenarioModel()
	sc := &domain.Scenario{Name: "mixed"}

	require.NoError(t, sc.ParseUpdates(" p1 = 2 ; v1 = p1 + 1 ; ", m))

	require.Len(t, sc.Updates, 2)
	assert.Equal(t, domain.TargetVariable, sc.Updates[1].Target)
	assert.Equal(t, "p1 + 1", sc.Updates[1].Expression)
	// p1 is still "1" while parsing.
	assert.Equal(t, expr.Number(2), sc.Updates[1].TestValue)
	assert.Equal(t, "1", m.Parameter("p1").Expression)
	assert.Equal(t, "0", m.Variable("v1").Expression)
	assert.False(t, sc.BaseCase)
}

func TestScenario_ParseErrors(t *testing.T) {
	m := scenarioModel()

	var syn *expr.SyntaxError
	var undef *expr.UndefinedReferenceError

	sc := &domain.Scenario{Name: "bad"}
	require.ErrorAs(t, sc.ParseUpdates("p1 2", m), &syn)
	require.ErrorAs(t, sc.ParseUpdates("nope=1", m), &undef)
	assert.Equal(t, "nope", undef.Name)
	require.ErrorAs(t, sc.ParseUpdates("p1 = 1 +", m), &syn)
	require.ErrorAs(t, sc.ParseUpdates("p1 = ghost", m), &undef)
	assert.Empty(t, sc.Updates)
}

func TestScenario_SnapshotAndCopy(t *testing.T) {
	m := scenarioModel()
	m.CRN = true
	m.CRNSeed = 99
	m.Markov.HalfCycleCorrection = true
	m.Markov.DiscountRates = []float64{0.03, 0.03}

	sc := domain.NewScenario(m)
	assert.Equal(t, 1, sc.NumIterations)
	assert.True(t, sc.CRN1)
	assert.Equal(t, int64(99), sc.Seed1)
	assert.True(t, sc.HalfCycleCorrection)

	sc.CRN1, sc.CRN2, sc.Seed2 = false, true, 7
	cp := sc.Copy()
	assert.False(t, cp.CRN1)
	assert.True(t, cp.CRN2)
	assert.Equal(t, int64(7), cp.Seed2)

	cp.DiscountRates[0] = 0.05
	assert.Equal(t, 0.03, sc.DiscountRates[0])
}

func TestScenario_ApplySettings(t *testing.T) {
	m := scenarioModel()
	sc := &domain.Scenario{
		CohortSize:          1000,
		AnalysisType:        domain.AnalysisCEA,
		CostDim:             0,
		EffectDim:           1,
		WTP:                 50000,
		HalfCycleCorrection: true,
		DiscountRewards:     true,
		DiscountRates:       []float64{0.03, 0.015},
	}
	sc.ApplySettings(m)

	assert.Equal(t, 1000, m.CohortSize)
	assert.Equal(t, domain.AnalysisCEA, m.Dimensions.AnalysisType)
	assert.Equal(t, domain.Maximize, m.Dimensions.Objective)
	assert.Equal(t, 50000.0, m.Dimensions.WTP)
	assert.Equal(t, []float64{0.03, 0.015}, m.Markov.DiscountRates)
	assert.True(t, m.Markov.HalfCycleCorrection)
}
