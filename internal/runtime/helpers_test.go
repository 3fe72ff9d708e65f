package runtime_test

import (
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
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

func setCost(m *domain.Model, i int, cost ...string) {
	switch p := m.Tree.Nodes[i].Payload.(type) {
	case *domain.Decision:
		p.Cost = cost
	case *domain.Chance:
		p.Cost = cost
	case *domain.MarkovChain:
		p.Cost = cost
	case *domain.Transition:
		p.Cost = cost
	}
}

func chainOf(m *domain.Model, i int) *domain.MarkovChain {
	return m.Tree.Nodes[i].Payload.(*domain.MarkovChain)
}

func stateOf(m *domain.Model, i int) *domain.MarkovState {
	return m.Tree.Nodes[i].Payload.(*domain.MarkovState)
}

func transition(t *testing.T, m *domain.Model, state int, target, prob string) int {
	t.Helper()
	i := add(t, m, state, domain.KindTransition, "to "+target, prob)
	m.Tree.Nodes[i].Payload.(*domain.Transition).Target = target
	return i
}

// absorbing builds a root decision with one chain holding a single
// absorbing state that earns reward each cycle.
func absorbing(t *testing.T, termination, reward string) (*domain.Model, int) {
	t.Helper()
	m := domain.NewModel("absorbing", "QALY")
	chain := add(t, m, 0, domain.KindMarkovChain, "Cohort", "")
	chainOf(m, chain).Termination = termination
	s := add(t, m, chain, domain.KindMarkovState, "Alive", "1")
	stateOf(m, s).Rewards = []string{reward}
	transition(t, m, s, "Alive", "1")
	return m, chain
}

// wellDead builds a two-state chain where half of Well dies every cycle.
func wellDead(t *testing.T, termination string) (*domain.Model, int) {
	t.Helper()
	m := domain.NewModel("well-dead", "QALY")
	chain := add(t, m, 0, domain.KindMarkovChain, "Cohort", "")
	chainOf(m, chain).Termination = termination
	well := add(t, m, chain, domain.KindMarkovState, "Well", "1")
	dead := add(t, m, chain, domain.KindMarkovState, "Dead", "0")
	stateOf(m, well).Rewards = []string{"1"}
	transition(t, m, well, "Dead", "0.5")
	transition(t, m, well, "Well", domain.Complement)
	transition(t, m, dead, "Dead", "1")
	return m, chain
}

// strategies builds a cost/effect decision between two chance branches
// driven by the parameter p.
func strategies(t *testing.T) *domain.Model {
	t.Helper()
	m := domain.NewModel("strategies", "Cost", "QALY")
	m.Dimensions.AnalysisType = domain.AnalysisCEA
	m.Dimensions.CostDim, m.Dimensions.EffectDim = 0, 1
	m.Dimensions.WTP = 1000
	m.Parameters = []*domain.Parameter{
		{Name: "p", Expression: "Uniform(0, 1)"},
		{Name: "cTreat", Expression: "100"},
	}

	none := add(t, m, 0, domain.KindChance, "None", "")
	setCost(m, add(t, m, none, domain.KindChance, "Recover", "p"), "0", "1")
	setCost(m, add(t, m, none, domain.KindChance, "Fail", domain.Complement), "0", "0")

	treat := add(t, m, 0, domain.KindChance, "Treat", "")
	setCost(m, treat, "cTreat", "0")
	setCost(m, add(t, m, treat, domain.KindChance, "Recover", "p + 0.2"), "0", "1")
	setCost(m, add(t, m, treat, domain.KindChance, "Fail", domain.Complement), "0", "0")
	return m
}
