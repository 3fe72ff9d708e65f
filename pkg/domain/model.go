package domain

import (
	"errors"
	"fmt"
	"slices"

	"github.com/aretw0/arbor/pkg/expr"
)

// Objective is the optimisation direction for decision nodes.
type Objective string

const (
	Maximize Objective = "maximize"
	Minimize Objective = "minimize"
)

// AnalysisType selects how level-1 strategies are compared.
type AnalysisType string

const (
	// AnalysisEV compares expected values on the objective dimension.
	AnalysisEV AnalysisType = "ev"
	// AnalysisCEA is cost-effectiveness analysis (ICER).
	AnalysisCEA AnalysisType = "cea"
	// AnalysisBCA is benefit-cost analysis (net monetary benefit).
	AnalysisBCA AnalysisType = "bca"
)

// Dimensions describes the outcome axes every cost and reward vector spans.
type Dimensions struct {
	Names        []string     `json:"names" yaml:"names" mapstructure:"names"`
	Symbols      []string     `json:"symbols,omitempty" yaml:"symbols,omitempty" mapstructure:"symbols"`
	AnalysisType AnalysisType `json:"analysis_type,omitempty" yaml:"analysis_type,omitempty" mapstructure:"analysis_type"`
	Objective    Objective    `json:"objective,omitempty" yaml:"objective,omitempty" mapstructure:"objective"`
	ObjectiveDim int          `json:"objective_dim" yaml:"objective_dim" mapstructure:"objective_dim"`
	CostDim      int          `json:"cost_dim" yaml:"cost_dim" mapstructure:"cost_dim"`
	EffectDim    int          `json:"effect_dim" yaml:"effect_dim" mapstructure:"effect_dim"`
	WTP          float64      `json:"wtp" yaml:"wtp" mapstructure:"wtp"`
	// BaseStrategy names the level-1 branch used as ICER comparator.
	// Empty means the cheapest strategy.
	BaseStrategy string `json:"base_strategy,omitempty" yaml:"base_strategy,omitempty" mapstructure:"base_strategy"`
	ExtendedDim  int    `json:"extended_dim,omitempty" yaml:"extended_dim,omitempty" mapstructure:"extended_dim"`
}

// Count returns the number of outcome dimensions.
func (d Dimensions) Count() int { return len(d.Names) }

// Validate reports objective, cost or effect indices that name no dimension.
func (d Dimensions) Validate() error {
	var errs []error
	for _, f := range []struct {
		field string
		index int
	}{{"objective_dim", d.ObjectiveDim}, {"cost_dim", d.CostDim}, {"effect_dim", d.EffectDim}} {
		if f.index < 0 || f.index >= d.Count() {
			errs = append(errs, fmt.Errorf("%s %d outside %d dimensions: %w", f.field, f.index, d.Count(), ErrDimensionOutOfRange))
		}
	}
	return errors.Join(errs...)
}

// MarkovSettings configures every chain rollout in a model.
type MarkovSettings struct {
	HalfCycleCorrection bool      `json:"half_cycle_correction" yaml:"half_cycle_correction" mapstructure:"half_cycle_correction"`
	DiscountRewards     bool      `json:"discount_rewards" yaml:"discount_rewards" mapstructure:"discount_rewards"`
	DiscountRates       []float64 `json:"discount_rates,omitempty" yaml:"discount_rates,omitempty" mapstructure:"discount_rates"`
	DiscountStartCycle  int       `json:"discount_start_cycle" yaml:"discount_start_cycle" mapstructure:"discount_start_cycle"`
}

// Parameter is a named model input.
type Parameter struct {
	Name       string `json:"name" yaml:"name"`
	Expression string `json:"expression" yaml:"expression"`
	Notes      string `json:"notes,omitempty" yaml:"notes,omitempty"`
	// Locked freezes Value; the expression is no longer evaluated.
	Locked bool         `json:"locked,omitempty" yaml:"locked,omitempty"`
	Value  expr.Numeric `json:"value" yaml:"value"`
}

// Variable is a named quantity that may change during a chain rollout.
type Variable struct {
	Name       string       `json:"name" yaml:"name"`
	Expression string       `json:"expression" yaml:"expression"`
	Notes      string       `json:"notes,omitempty" yaml:"notes,omitempty"`
	Value      expr.Numeric `json:"value" yaml:"value"`

	initialized bool
}

// Model is the context every expression is evaluated against.
// It implements expr.Env and is not safe for concurrent use; clone it per worker.
type Model struct {
	Name       string         `json:"name" yaml:"name"`
	Tree       *Tree          `json:"tree" yaml:"tree"`
	Parameters []*Parameter   `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Variables  []*Variable    `json:"variables,omitempty" yaml:"variables,omitempty"`
	Tables     []*Table       `json:"tables,omitempty" yaml:"tables,omitempty"`
	Dimensions Dimensions     `json:"dimensions" yaml:"dimensions"`
	Markov     MarkovSettings `json:"markov" yaml:"markov"`
	CohortSize int            `json:"cohort_size,omitempty" yaml:"cohort_size,omitempty"`
	CRN        bool           `json:"crn,omitempty" yaml:"crn,omitempty"`
	CRNSeed    int64          `json:"crn_seed,omitempty" yaml:"crn_seed,omitempty"`
	Seed       int64          `json:"seed,omitempty" yaml:"seed,omitempty"`
	Scenarios  []*Scenario    `json:"scenarios,omitempty" yaml:"scenarios,omitempty"`
	// ParamSets holds pre-generated parameter vectors, one row per PSA
	// iteration, columns in Parameters order.
	ParamSets [][]float64 `json:"param_sets,omitempty" yaml:"param_sets,omitempty"`

	streams  *expr.Streams
	resolved map[string]expr.Numeric
}

// NewModel creates a model with a root-only tree spanning the given dimensions.
func NewModel(name string, dims ...string) *Model {
	if len(dims) == 0 {
		dims = []string{"Cost"}
	}
	return &Model{
		Name: name,
		Tree: NewTree(len(dims)),
		Dimensions: Dimensions{
			Names:        dims,
			AnalysisType: AnalysisEV,
			Objective:    Maximize,
		},
		CohortSize: 1,
	}
}

// Lookup implements expr.Env.
func (m *Model) Lookup(name string) (expr.Symbol, bool) {
	if p := m.Parameter(name); p != nil {
		sym := expr.Symbol{Kind: expr.SymbolParameter, Name: name, Expression: p.Expression}
		if p.Locked {
			sym.Fixed, sym.Value = true, p.Value
		} else if v, ok := m.resolved[name]; ok {
			sym.Fixed, sym.Value = true, v
		}
		return sym, true
	}
	if v := m.Variable(name); v != nil {
		sym := expr.Symbol{Kind: expr.SymbolVariable, Name: name, Expression: v.Expression}
		if v.initialized {
			sym.Fixed, sym.Value = true, v.Value
		}
		return sym, true
	}
	if t := m.Table(name); t != nil {
		return expr.Symbol{Kind: expr.SymbolTable, Name: name, Table: t}, true
	}
	return expr.Symbol{}, false
}

// Streams implements expr.Env. Streams are created lazily from Seed.
func (m *Model) Streams() *expr.Streams {
	if m.streams == nil {
		m.streams = expr.NewStreams(m.Seed)
	}
	return m.streams
}

// SetStreams replaces the random streams.
func (m *Model) SetStreams(s *expr.Streams) { m.streams = s }

// Parameter returns the parameter named name, or nil.
func (m *Model) Parameter(name string) *Parameter {
	for _, p := range m.Parameters {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Variable returns the variable named name, or nil.
func (m *Model) Variable(name string) *Variable {
	for _, v := range m.Variables {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// Table returns the table named name, or nil.
func (m *Model) Table(name string) *Table {
	for _, t := range m.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// ResolveParameters evaluates every unlocked parameter in dependency order
// and caches the result for the rest of the run. With finalize set,
// stochastic parameters commit a draw from the parameter stream.
func (m *Model) ResolveParameters(finalize bool) error {
	m.resolved = make(map[string]expr.Numeric, len(m.Parameters))
	defs := make([]expr.Definition, 0, len(m.Parameters))
	for _, p := range m.Parameters {
		if !p.Locked {
			defs = append(defs, expr.Definition{Name: p.Name, Expression: p.Expression})
		}
	}
	ordered, err := expr.Order(defs)
	if err != nil {
		return err
	}
	ev := expr.NewEvaluator(m, finalize)
	for _, d := range ordered {
		v, err := ev.Evaluate(d.Expression)
		if err != nil {
			return fmt.Errorf("parameter %s: %w", d.Name, err)
		}
		m.resolved[d.Name] = v
		m.Parameter(d.Name).Value = v
	}
	return nil
}

// ResetParameters drops the resolved cache so parameters are re-evaluated.
func (m *Model) ResetParameters() { m.resolved = nil }

// SetParameterValues pins unlocked parameters to the given values, in
// Parameters order. It is used to replay a stored parameter set.
func (m *Model) SetParameterValues(row []float64) error {
	if len(row) != len(m.Parameters) {
		return fmt.Errorf("parameter set has %d values, model has %d parameters", len(row), len(m.Parameters))
	}
	m.resolved = make(map[string]expr.Numeric, len(m.Parameters))
	for i, p := range m.Parameters {
		if p.Locked {
			continue
		}
		p.Value = expr.Number(row[i])
		m.resolved[p.Name] = p.Value
	}
	return nil
}

// InitVariables evaluates every variable's initial expression in dependency
// order. Variables read before initialization evaluate their expression.
func (m *Model) InitVariables(finalize bool) error {
	m.ResetVariables()
	defs := make([]expr.Definition, len(m.Variables))
	for i, v := range m.Variables {
		defs[i] = expr.Definition{Name: v.Name, Expression: v.Expression}
	}
	ordered, err := expr.Order(defs)
	if err != nil {
		return err
	}
	ev := expr.NewEvaluator(m, finalize).UseStream(expr.StreamTree)
	for _, d := range ordered {
		v, err := ev.Evaluate(d.Expression)
		if err != nil {
			return fmt.Errorf("variable %s: %w", d.Name, err)
		}
		va := m.Variable(d.Name)
		va.Value, va.initialized = v, true
	}
	return nil
}

// ResetVariables marks every variable uninitialized.
func (m *Model) ResetVariables() {
	for _, v := range m.Variables {
		v.initialized = false
	}
}

// SetVariable assigns a variable's current value.
func (m *Model) SetVariable(name string, value expr.Numeric) error {
	v := m.Variable(name)
	if v == nil {
		return &expr.UndefinedReferenceError{Name: name}
	}
	v.Value, v.initialized = value, true
	return nil
}

// SetDimensions renames the outcome dimensions and resizes every vector.
func (m *Model) SetDimensions(names []string) {
	m.Dimensions.Names = slices.Clone(names)
	if len(m.Markov.DiscountRates) > len(names) {
		m.Markov.DiscountRates = m.Markov.DiscountRates[:len(names)]
	}
	m.Tree.Resize(len(names))
}

// Clone deep-copies the model, including random stream positions and the
// resolved parameter cache.
func (m *Model) Clone() *Model {
	c := *m
	c.Tree = m.Tree.Clone()
	c.Parameters = make([]*Parameter, len(m.Parameters))
	for i, p := range m.Parameters {
		cp := *p
		c.Parameters[i] = &cp
	}
	c.Variables = make([]*Variable, len(m.Variables))
	for i, v := range m.Variables {
		cv := *v
		c.Variables[i] = &cv
	}
	c.Tables = make([]*Table, len(m.Tables))
	for i, t := range m.Tables {
		ct := *t
		ct.Headers = slices.Clone(t.Headers)
		ct.Data = make([][]float64, len(t.Data))
		for r, row := range t.Data {
			ct.Data[r] = slices.Clone(row)
		}
		c.Tables[i] = &ct
	}
	c.Dimensions.Names = slices.Clone(m.Dimensions.Names)
	c.Dimensions.Symbols = slices.Clone(m.Dimensions.Symbols)
	c.Markov.DiscountRates = slices.Clone(m.Markov.DiscountRates)
	c.Scenarios = make([]*Scenario, len(m.Scenarios))
	for i, s := range m.Scenarios {
		c.Scenarios[i] = s.Copy()
	}
	c.ParamSets = make([][]float64, len(m.ParamSets))
	for i, row := range m.ParamSets {
		c.ParamSets[i] = slices.Clone(row)
	}
	if m.streams != nil {
		c.streams = m.streams.Clone()
	}
	if m.resolved != nil {
		c.resolved = make(map[string]expr.Numeric, len(m.resolved))
		for k, v := range m.resolved {
			c.resolved[k] = v
		}
	}
	return &c
}

// Scenario returns the stored scenario named name, or nil.
func (m *Model) Scenario(name string) *Scenario {
	for _, s := range m.Scenarios {
		if s.Name == name {
			return s
		}
	}
	return nil
}
