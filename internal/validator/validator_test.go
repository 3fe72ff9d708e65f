package validator_test

import (
	"testing"

	"github.com/aretw0/arbor/internal/validator"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func add(t *testing.T, m *domain.Model, parent int, kind domain.Kind, name, prob string) int {
	t.Helper()
	i, err := m.Tree.AddChild(parent, kind)
	require.NoError(t, err)
	if kind == domain.KindMarkovState {
		require.NoError(t, m.Tree.RenameState(i, name))
	} else {
		m.Tree.Nodes[i].Name = name
	}
	m.Tree.Nodes[i].Prob = prob
	return i
}

// validModel builds a decision between a simple chance split and a
// two-state chain.
func validModel(t *testing.T) *domain.Model {
	m := domain.NewModel("valid", "Cost", "QALY")
	m.Parameters = []*domain.Parameter{{Name: "pSick", Expression: "0.2"}}

	treat := add(t, m, 0, domain.KindChance, "Treat", "")
	add(t, m, treat, domain.KindChance, "Cured", "1 - pSick")
	add(t, m, treat, domain.KindChance, "Sick", "pSick")

	chain := add(t, m, 0, domain.KindMarkovChain, "Watch", "")
	m.Tree.Nodes[chain].Payload.(*domain.MarkovChain).Termination = "t >= 5"
	well := add(t, m, chain, domain.KindMarkovState, "Well", "1")
	dead := add(t, m, chain, domain.KindMarkovState, "Dead", "0")
	toDead := add(t, m, well, domain.KindTransition, "", "pSick")
	m.Tree.Nodes[toDead].Payload.(*domain.Transition).Target = "Dead"
	stay := add(t, m, well, domain.KindTransition, "", domain.Complement)
	m.Tree.Nodes[stay].Payload.(*domain.Transition).Target = "Well"
	absorb := add(t, m, dead, domain.KindTransition, "", "1")
	m.Tree.Nodes[absorb].Payload.(*domain.Transition).Target = "Dead"
	return m
}

func TestParseTree_Valid(t *testing.T) {
	m := validModel(t)
	report := validator.ParseTree(m, validator.DefaultOptions())
	assert.True(t, report.Checked(), "unexpected issues: %v", report.Errors)
	assert.NoError(t, report.Err())
}

func TestParseTree_CollectsEveryIssue(t *testing.T) {
	m := validModel(t)
	// 1. Bad probability sum
	m.Tree.Nodes[3].Prob = "pSick * 2"
	// 2. Syntax error in a cost
	m.Tree.Nodes[1].Payload.(*domain.Chance).Cost[0] = "3 +"
	// 3. Transition to a missing state
	m.Tree.Nodes[7].Payload.(*domain.Transition).Target = "Gone"

	report := validator.ParseTree(m, validator.DefaultOptions())
	require.False(t, report.Checked())
	require.Len(t, report.Errors, 3)

	var mismatch *domain.ProbabilityMismatchError
	var syn *expr.SyntaxError
	var undef *expr.UndefinedReferenceError
	err := report.Err()
	assert.ErrorAs(t, err, &mismatch)
	assert.InDelta(t, 1.2, mismatch.Sum, 1e-12)
	assert.ErrorAs(t, err, &syn)
	assert.ErrorAs(t, err, &undef)
	assert.Equal(t, "Gone", undef.Name)

	// Issues are reported in walk order.
	assert.Equal(t, "Treat", report.Errors[0].Node)
}

func TestParseTree_ProbabilityChecksAreOptional(t *testing.T) {
	m := validModel(t)
	m.Tree.Nodes[3].Prob = "0.5"

	assert.False(t, validator.ParseTree(m, validator.DefaultOptions()).Checked())
	assert.True(t, validator.ParseTree(m, validator.Options{}).Checked())
}

func TestParseTree_Tolerance(t *testing.T) {
	m := validModel(t)
	m.Tree.Nodes[2].Prob = "0.8 + 1e-12"

	assert.True(t, validator.ParseTree(m, validator.DefaultOptions()).Checked())
	assert.False(t, validator.ParseTree(m, validator.Options{CheckProbs: true, Tolerance: 1e-15}).Checked())
}

func TestParseTree_DefinitionIssues(t *testing.T) {
	m := validModel(t)
	m.Parameters = append(m.Parameters,
		&domain.Parameter{Name: "a", Expression: "b"},
		&domain.Parameter{Name: "b", Expression: "a"},
	)
	m.Variables = []*domain.Variable{{Name: "pSick", Expression: "0"}, {Name: "t", Expression: "0"}}

	report := validator.ParseTree(m, validator.DefaultOptions())
	err := report.Err()
	assert.ErrorIs(t, err, domain.ErrDuplicateName)
	var cyc *expr.CycleError
	assert.ErrorAs(t, err, &cyc)
	assert.ErrorContains(t, err, "reserved")
}

func TestParseTree_DimensionIndices(t *testing.T) {
	m := validModel(t)
	m.Dimensions.EffectDim = 5
	m.Dimensions.CostDim = -1

	report := validator.ParseTree(m, validator.DefaultOptions())
	require.False(t, report.Checked())
	err := report.Err()
	assert.ErrorIs(t, err, domain.ErrDimensionOutOfRange)
	assert.ErrorContains(t, err, "effect_dim 5")
	assert.ErrorContains(t, err, "cost_dim -1")
}

func TestParseChain(t *testing.T) {
	m := validModel(t)
	chain := m.Tree.Chains()[0]

	assert.True(t, validator.ParseChain(m, chain, validator.DefaultOptions()).Checked())

	mc := m.Tree.Nodes[chain].Payload.(*domain.MarkovChain)
	mc.Termination = "t +"
	m.Tree.Nodes[chain+1].Prob = "0.5"
	report := validator.ParseChain(m, chain, validator.DefaultOptions())
	assert.Len(t, report.Errors, 2)

	// Issues outside the chain are not reported.
	m.Tree.Nodes[3].Prob = "9"
	assert.Len(t, validator.ParseChain(m, chain, validator.DefaultOptions()).Errors, 2)

	assert.False(t, validator.ParseChain(m, 0, validator.DefaultOptions()).Checked())
}

func TestParseChain_StructuralIssues(t *testing.T) {
	m := domain.NewModel("empty", "Cost")
	chain := add(t, m, 0, domain.KindMarkovChain, "Empty", "")

	report := validator.ParseChain(m, chain, validator.DefaultOptions())
	assert.ErrorContains(t, report.Err(), "has no states")
	assert.ErrorContains(t, report.Err(), "termination condition is empty")

	s := add(t, m, chain, domain.KindMarkovState, "Only", "1")
	c := add(t, m, s, domain.KindChance, "Dangling", "1")
	m.Tree.Nodes[chain].Payload.(*domain.MarkovChain).Termination = "cycle >= 1"
	report = validator.ParseChain(m, chain, validator.DefaultOptions())
	require.Len(t, report.Errors, 1)
	assert.Equal(t, c, report.Errors[0].Index)
}
