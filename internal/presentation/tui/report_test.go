package tui

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/internal/validator"
	"github.com/aretw0/arbor/pkg/domain"
)

func twoStrategies(t *testing.T) *domain.Model {
	t.Helper()
	m := domain.NewModel("trial", "Cost", "QALY")
	m.Dimensions.Symbols = []string{"$", ""}
	m.Dimensions.AnalysisType = domain.AnalysisCEA
	m.Dimensions.CostDim, m.Dimensions.EffectDim, m.Dimensions.WTP = 0, 1, 100
	for _, s := range []struct{ name, cost, effect string }{{"Usual", "10", "1"}, {"New", "30", "1.5"}} {
		i, err := m.Tree.AddChild(0, domain.KindChance)
		require.NoError(t, err)
		m.Tree.Nodes[i].Name = s.name
		m.Tree.Nodes[i].Payload.(*domain.Chance).Cost = []string{s.cost, s.effect}
	}
	return m
}

func TestResultReport(t *testing.T) {
	m := twoStrategies(t)
	res, err := runtime.NewEngine().Run(context.Background(), m)
	require.NoError(t, err)

	icers, err := res.CEA(m.Dimensions)
	require.NoError(t, err)

	out := ResultReport(m, res, icers)
	assert.Contains(t, out, "# trial")
	assert.Contains(t, out, "| Strategy | Cost ($) | QALY |  |")
	assert.Contains(t, out, "| Usual | 10 | 1 |")
	assert.Contains(t, out, "Cost-effectiveness (WTP 100)")
	assert.Contains(t, out, "| New | 30 | 1.5 | 20 | 0.5 | 40 |")
	assert.Contains(t, out, "comparator")
}

func TestPSAReport(t *testing.T) {
	m := twoStrategies(t)
	its, err := runtime.NewEngine().RunPSA(context.Background(), m, runtime.Settings{Iterations: 4})
	require.NoError(t, err)

	out := PSAReport(m, len(its), runtime.Summarize(its))
	assert.Contains(t, out, "# trial: 4 iterations")
	assert.Contains(t, out, "| Usual | Cost ($) | 10 | 0 | 10 to 10 |")
}

func TestValidationReport(t *testing.T) {
	m := twoStrategies(t)
	assert.Contains(t, ValidationReport("trial", validator.ParseTree(m, validator.DefaultOptions())), "No problems found.")

	m.Tree.Nodes[1].Payload.(*domain.Chance).Cost[0] = "undefinedThing"
	out := ValidationReport("trial", validator.ParseTree(m, validator.DefaultOptions()))
	assert.Contains(t, out, "# trial: 1 problems")
	assert.Contains(t, out, "| Usual | 1 |")
}

func TestScenarioReport(t *testing.T) {
	assert.Contains(t, ScenarioReport("trial", nil), "None defined.")

	out := ScenarioReport("trial", []*domain.Scenario{
		{Name: "base", NumIterations: 1, AnalysisType: domain.AnalysisEV},
		{Name: "cheap", NumIterations: 100, ObjectUpdates: "c = 1"},
	})
	assert.Contains(t, out, "| base | 1 | ev | `base case` |")
	assert.Contains(t, out, "| cheap | 100 |  | `c = 1` |")
}

func TestPrinter_PlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true)
	assert.False(t, p.Styled())
	require.NoError(t, p.Print("# Title\n"))
	assert.Equal(t, "# Title\n", buf.String())
	assert.False(t, IsTerminal(&buf))
}

func TestNewRenderer(t *testing.T) {
	render, err := NewRenderer(60)
	require.NoError(t, err)
	out, err := render("**bold**")
	require.NoError(t, err)
	assert.Contains(t, out, "bold")
}

func TestBannerAndStatus(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "v1.0.0")
	Status(&buf, false, "%d problems", 2)
	assert.Contains(t, buf.String(), "v1.0.0")
	assert.Contains(t, buf.String(), "2 problems")
}
