// Package hcl reads and writes models in HCL. Nodes are nested "node"
// blocks labelled with their kind and name, so sibling order is kept:
//
//	name       = "hiv"
//	dimensions = ["Cost", "QALY"]
//
//	parameter "pDie" {
//	  expression = "0.05"
//	}
//
//	node "decision" "Root" {
//	  node "markov_chain" "Standard care" {
//	    termination = "t >= 20"
//	    node "markov_state" "Well" {
//	      prob    = "1"
//	      rewards = ["2000", "1"]
//	      node "transition" "die" {
//	        prob   = "pDie"
//	        target = "Dead"
//	      }
//	      node "transition" "stay" {
//	        prob   = complement
//	        target = "Well"
//	      }
//	    }
//	  }
//	}
package hcl

import (
	"fmt"
	"os"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/expr"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// hclModelFile represents the top-level structure of a model file for decoding.
type hclModelFile struct {
	Name         string   `hcl:"name"`
	Dimensions   []string `hcl:"dimensions"`
	Symbols      []string `hcl:"symbols,optional"`
	Analysis     string   `hcl:"analysis,optional"`
	Objective    string   `hcl:"objective,optional"`
	ObjectiveDim int      `hcl:"objective_dim,optional"`
	CostDim      int      `hcl:"cost_dim,optional"`
	EffectDim    int      `hcl:"effect_dim,optional"`
	WTP          float64  `hcl:"wtp,optional"`
	BaseStrategy string   `hcl:"base_strategy,optional"`
	CohortSize   int      `hcl:"cohort_size,optional"`
	Seed         int64    `hcl:"seed,optional"`
	CRN          bool     `hcl:"crn,optional"`
	CRNSeed      int64    `hcl:"crn_seed,optional"`

	ParamSets  [][]float64      `hcl:"param_sets,optional"`
	Markov     *hclMarkov       `hcl:"markov,block"`
	Parameters []*hclDefinition `hcl:"parameter,block"`
	Variables  []*hclDefinition `hcl:"variable,block"`
	Tables     []*hclTable      `hcl:"table,block"`
	Scenarios  []*hclScenario   `hcl:"scenario,block"`
	Root       *hclNode         `hcl:"node,block"`
}

type hclMarkov struct {
	HalfCycleCorrection bool      `hcl:"half_cycle_correction,optional"`
	DiscountRewards     bool      `hcl:"discount_rewards,optional"`
	DiscountRates       []float64 `hcl:"discount_rates,optional"`
	DiscountStartCycle  int       `hcl:"discount_start_cycle,optional"`
}

type hclDefinition struct {
	Name       string   `hcl:"name,label"`
	Expression string   `hcl:"expression"`
	Notes      string   `hcl:"notes,optional"`
	Locked     bool     `hcl:"locked,optional"`
	Value      *float64 `hcl:"value,optional"`
}

type hclTable struct {
	Name    string      `hcl:"name,label"`
	Type    string      `hcl:"type,optional"`
	Headers []string    `hcl:"headers,optional"`
	Rows    [][]float64 `hcl:"rows"`
	Notes   string      `hcl:"notes,optional"`
}

type hclScenario struct {
	Name         string   `hcl:"name,label"`
	Updates      string   `hcl:"updates,optional"`
	Iterations   int      `hcl:"iterations,optional"`
	CohortSize   int      `hcl:"cohort_size,optional"`
	CRN1         bool     `hcl:"crn1,optional"`
	CRN2         bool     `hcl:"crn2,optional"`
	Seed1        int64    `hcl:"seed1,optional"`
	Seed2        int64    `hcl:"seed2,optional"`
	SampleParams bool     `hcl:"sample_params,optional"`
	UseParamSets bool     `hcl:"use_param_sets,optional"`
	WTP          *float64 `hcl:"wtp,optional"`
	HalfCycle    *bool    `hcl:"half_cycle_correction,optional"`
	Notes        string   `hcl:"notes,optional"`
}

type hclNode struct {
	Kind         string     `hcl:"kind,label"`
	Name         string     `hcl:"name,label"`
	Prob         string     `hcl:"prob,optional"`
	Cost         []string   `hcl:"cost,optional"`
	Rewards      []string   `hcl:"rewards,optional"`
	Termination  string     `hcl:"termination,optional"`
	VarUpdates   string     `hcl:"var_updates,optional"`
	VarUpdatesT0 string     `hcl:"var_updates_t0,optional"`
	Target       string     `hcl:"target,optional"`
	Notes        string     `hcl:"notes,optional"`
	Collapsed    bool       `hcl:"collapsed,optional"`
	Children     []*hclNode `hcl:"node,block"`
}

// evalContext exposes helper constants to model files.
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"complement": cty.StringVal(domain.Complement),
		},
	}
}

// DecodeFile parses the HCL model at path.
func DecodeFile(path string) (*domain.Model, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	return Decode(src, path)
}

// Decode parses an HCL model. filename is used in diagnostics only.
func Decode(src []byte, filename string) (*domain.Model, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var f hclModelFile
	if diags := gohcl.DecodeBody(file.Body, evalContext(), &f); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	m, err := f.model()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return m, nil
}

func (f *hclModelFile) model() (*domain.Model, error) {
	if len(f.Dimensions) == 0 {
		return nil, fmt.Errorf("at least one dimension is required")
	}
	m := domain.NewModel(f.Name, f.Dimensions...)
	m.Dimensions.Symbols = f.Symbols
	if f.Analysis != "" {
		m.Dimensions.AnalysisType = domain.AnalysisType(f.Analysis)
	}
	if f.Objective != "" {
		m.Dimensions.Objective = domain.Objective(f.Objective)
	}
	m.Dimensions.ObjectiveDim = f.ObjectiveDim
	m.Dimensions.CostDim = f.CostDim
	m.Dimensions.EffectDim = f.EffectDim
	m.Dimensions.WTP = f.WTP
	m.Dimensions.BaseStrategy = f.BaseStrategy
	if f.CohortSize > 0 {
		m.CohortSize = f.CohortSize
	}
	m.Seed, m.CRN, m.CRNSeed = f.Seed, f.CRN, f.CRNSeed
	m.ParamSets = f.ParamSets

	if mk := f.Markov; mk != nil {
		m.Markov = domain.MarkovSettings{
			HalfCycleCorrection: mk.HalfCycleCorrection,
			DiscountRewards:     mk.DiscountRewards,
			DiscountRates:       mk.DiscountRates,
			DiscountStartCycle:  mk.DiscountStartCycle,
		}
	}
	for _, p := range f.Parameters {
		param := &domain.Parameter{Name: p.Name, Expression: p.Expression, Notes: p.Notes, Locked: p.Locked}
		if p.Value != nil {
			param.Value = expr.Number(*p.Value)
		}
		m.Parameters = append(m.Parameters, param)
	}
	for _, v := range f.Variables {
		m.Variables = append(m.Variables, &domain.Variable{Name: v.Name, Expression: v.Expression, Notes: v.Notes})
	}
	for _, t := range f.Tables {
		typ := domain.TableType(t.Type)
		if typ == "" {
			typ = domain.TableLookup
		}
		m.Tables = append(m.Tables, &domain.Table{Name: t.Name, Type: typ, Headers: t.Headers, Data: t.Rows, Notes: t.Notes})
	}
	for _, s := range f.Scenarios {
		m.Scenarios = append(m.Scenarios, s.scenario(m))
	}

	// Tree
	if f.Root == nil {
		return m, nil
	}
	if f.Root.Kind != domain.KindDecision.String() {
		return nil, fmt.Errorf("root node %q must be a decision, got %s", f.Root.Name, f.Root.Kind)
	}
	root := m.Tree.Root()
	root.Name, root.Notes = f.Root.Name, f.Root.Notes
	if err := setFields(m.Tree, 0, f.Root); err != nil {
		return nil, err
	}
	for _, c := range f.Root.Children {
		if err := addNode(m.Tree, 0, c); err != nil {
			return nil, err
		}
	}
	if f.Root.Collapsed {
		if err := m.Tree.SetCollapsed(0, true); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// scenario starts from the model's settings and applies what the block sets.
func (s *hclScenario) scenario(m *domain.Model) *domain.Scenario {
	sc := domain.NewScenario(m)
	sc.Name = s.Name
	sc.ObjectUpdates = s.Updates
	sc.Notes = s.Notes
	if s.Iterations > 0 {
		sc.NumIterations = s.Iterations
	}
	if s.CohortSize > 0 {
		sc.CohortSize = s.CohortSize
	}
	sc.CRN1 = sc.CRN1 || s.CRN1
	if s.Seed1 != 0 {
		sc.Seed1 = s.Seed1
	}
	sc.CRN2, sc.Seed2 = s.CRN2, s.Seed2
	sc.SampleParams, sc.UseParamSets = s.SampleParams, s.UseParamSets
	if s.WTP != nil {
		sc.WTP = *s.WTP
	}
	if s.HalfCycle != nil {
		sc.HalfCycleCorrection = *s.HalfCycle
	}
	return sc
}

func addNode(t *domain.Tree, parent int, n *hclNode) error {
	kind, err := domain.ParseKind(n.Kind)
	if err != nil {
		return fmt.Errorf("node %q: %w", n.Name, err)
	}
	i, err := t.AddChild(parent, kind)
	if err != nil {
		return fmt.Errorf("node %q under %q: %w", n.Name, t.Nodes[parent].Name, err)
	}
	if err := t.Rename(i, n.Name); err != nil {
		return fmt.Errorf("node %q: %w", n.Name, err)
	}
	if n.Prob != "" {
		t.Nodes[i].Prob = n.Prob
	}
	t.Nodes[i].Notes = n.Notes
	if err := setFields(t, i, n); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := addNode(t, i, c); err != nil {
			return err
		}
	}
	if n.Collapsed {
		return t.SetCollapsed(i, true)
	}
	return nil
}

// setFields copies the kind-specific attributes. Vectors shorter than the
// dimension count keep their "0" defaults.
func setFields(t *domain.Tree, i int, n *hclNode) error {
	fill := func(dst, src []string) error {
		if len(src) > len(dst) {
			return fmt.Errorf("node %q: %d values for %d dimensions", n.Name, len(src), len(dst))
		}
		copy(dst, src)
		return nil
	}
	switch p := t.Nodes[i].Payload.(type) {
	case *domain.Decision:
		return fill(p.Cost, n.Cost)
	case *domain.Chance:
		p.VarUpdates = n.VarUpdates
		return fill(p.Cost, n.Cost)
	case *domain.MarkovChain:
		p.Termination = n.Termination
		p.VarUpdates = n.VarUpdates
		p.VarUpdatesT0 = n.VarUpdatesT0
		return fill(p.Cost, n.Cost)
	case *domain.MarkovState:
		p.VarUpdates = n.VarUpdates
		return fill(p.Rewards, n.Rewards)
	case *domain.Transition:
		p.Target = n.Target
		return fill(p.Cost, n.Cost)
	}
	return nil
}
