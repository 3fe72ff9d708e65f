package domain

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/arbor/pkg/expr"
)

// UpdateTarget tags which namespace an Update overrides.
type UpdateTarget int

const (
	TargetParameter UpdateTarget = iota
	TargetVariable
)

func (t UpdateTarget) String() string {
	if t == TargetVariable {
		return "variable"
	}
	return "parameter"
}

// Update replaces one Parameter or Variable expression.
type Update struct {
	Target     UpdateTarget
	Name       string
	Expression string
	// TestValue is the non-finalized value computed when the update was parsed.
	TestValue expr.Numeric
}

// Scenario is a named set of overrides plus the run settings to use with them.
type Scenario struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// Uncertainty
	NumIterations int   `json:"num_iterations" yaml:"num_iterations" mapstructure:"num_iterations"`
	CohortSize    int   `json:"cohort_size" yaml:"cohort_size" mapstructure:"cohort_size"`
	CRN1          bool  `json:"crn1" yaml:"crn1" mapstructure:"crn1"`
	CRN2          bool  `json:"crn2" yaml:"crn2" mapstructure:"crn2"`
	Seed1         int64 `json:"seed1" yaml:"seed1" mapstructure:"seed1"`
	Seed2         int64 `json:"seed2" yaml:"seed2" mapstructure:"seed2"`
	SampleParams  bool  `json:"sample_params" yaml:"sample_params" mapstructure:"sample_params"`
	UseParamSets  bool  `json:"use_param_sets" yaml:"use_param_sets" mapstructure:"use_param_sets"`

	// Analysis
	AnalysisType AnalysisType `json:"analysis_type,omitempty" yaml:"analysis_type,omitempty" mapstructure:"analysis_type"`
	Objective    Objective    `json:"objective,omitempty" yaml:"objective,omitempty" mapstructure:"objective"`
	ObjectiveDim int          `json:"objective_dim" yaml:"objective_dim" mapstructure:"objective_dim"`
	CostDim      int          `json:"cost_dim" yaml:"cost_dim" mapstructure:"cost_dim"`
	EffectDim    int          `json:"effect_dim" yaml:"effect_dim" mapstructure:"effect_dim"`
	WTP          float64      `json:"wtp" yaml:"wtp" mapstructure:"wtp"`
	BaseStrategy string       `json:"base_strategy,omitempty" yaml:"base_strategy,omitempty" mapstructure:"base_strategy"`
	ExtendedDim  int          `json:"extended_dim,omitempty" yaml:"extended_dim,omitempty" mapstructure:"extended_dim"`

	// Markov
	HalfCycleCorrection bool      `json:"half_cycle_correction" yaml:"half_cycle_correction" mapstructure:"half_cycle_correction"`
	DiscountRewards     bool      `json:"discount_rewards" yaml:"discount_rewards" mapstructure:"discount_rewards"`
	DiscountRates       []float64 `json:"discount_rates,omitempty" yaml:"discount_rates,omitempty" mapstructure:"discount_rates"`
	DiscountStartCycle  int       `json:"discount_start_cycle" yaml:"discount_start_cycle" mapstructure:"discount_start_cycle"`

	// ObjectUpdates is the override text, e.g. "pDie = 0.2; cost = 100".
	ObjectUpdates string `json:"object_updates" yaml:"object_updates" mapstructure:"object_updates"`
	Notes         string `json:"notes,omitempty" yaml:"notes,omitempty" mapstructure:"notes"`

	BaseCase bool     `json:"-" yaml:"-" mapstructure:"-"`
	Updates  []Update `json:"-" yaml:"-" mapstructure:"-"`
}

// NewScenario snapshots the model's current run settings.
func NewScenario(m *Model) *Scenario {
	return &Scenario{
		NumIterations:       1,
		CohortSize:          m.CohortSize,
		CRN1:                m.CRN,
		Seed1:               m.CRNSeed,
		AnalysisType:        m.Dimensions.AnalysisType,
		Objective:           m.Dimensions.Objective,
		ObjectiveDim:        m.Dimensions.ObjectiveDim,
		CostDim:             m.Dimensions.CostDim,
		EffectDim:           m.Dimensions.EffectDim,
		WTP:                 m.Dimensions.WTP,
		BaseStrategy:        m.Dimensions.BaseStrategy,
		ExtendedDim:         m.Dimensions.ExtendedDim,
		HalfCycleCorrection: m.Markov.HalfCycleCorrection,
		DiscountRewards:     m.Markov.DiscountRewards,
		DiscountRates:       slices.Clone(m.Markov.DiscountRates),
		DiscountStartCycle:  m.Markov.DiscountStartCycle,
	}
}

// Copy returns a copy of the persisted fields. Parsed updates are not copied.
func (s *Scenario) Copy() *Scenario {
	c := *s
	c.DiscountRates = slices.Clone(s.DiscountRates)
	c.BaseCase = false
	c.Updates = nil
	return &c
}

// ParseUpdates parses text into Updates and stores it as ObjectUpdates.
// Each clause is validated with a non-finalized evaluation; the model is
// never mutated. Empty text marks the scenario as the base case.
func (s *Scenario) ParseUpdates(text string, m *Model) error {
	s.ObjectUpdates = text
	s.Updates = nil
	s.BaseCase = strings.TrimSpace(text) == ""
	if s.BaseCase {
		return nil
	}
	for _, clause := range strings.Split(text, ";") {
		if strings.TrimSpace(clause) == "" {
			continue
		}
		u, err := parseUpdate(clause, m)
		if err != nil {
			s.Updates = nil
			return fmt.Errorf("scenario %s: %w", s.Name, err)
		}
		s.Updates = append(s.Updates, u)
	}
	s.BaseCase = len(s.Updates) == 0
	return nil
}

// Parse parses the scenario's stored ObjectUpdates.
func (s *Scenario) Parse(m *Model) error {
	return s.ParseUpdates(s.ObjectUpdates, m)
}

func parseUpdate(clause string, m *Model) (Update, error) {
	text := strings.TrimSpace(clause)
	pos := strings.IndexByte(text, '=')
	if pos < 0 {
		return Update{}, &expr.SyntaxError{Expr: text, Msg: "no assignment operator (=) found"}
	}
	u := Update{
		Name:       strings.TrimSpace(text[:pos]),
		Expression: strings.TrimSpace(text[pos+1:]),
	}
	switch {
	case m.Parameter(u.Name) != nil:
		u.Target = TargetParameter
	case m.Variable(u.Name) != nil:
		u.Target = TargetVariable
	default:
		return Update{}, &expr.UndefinedReferenceError{Name: u.Name}
	}
	v, err := expr.Evaluate(u.Expression, m, false)
	if err != nil {
		return Update{}, fmt.Errorf("%s: %w", u.Name, err)
	}
	u.TestValue = v
	return u, nil
}

// ApplyUpdates rewrites the target expressions. Values are not frozen, so
// stochastic replacements are re-sampled on every evaluation.
func (s *Scenario) ApplyUpdates(m *Model) error {
	if s.BaseCase {
		return nil
	}
	for _, u := range s.Updates {
		switch u.Target {
		case TargetParameter:
			p := m.Parameter(u.Name)
			if p == nil {
				return &expr.UndefinedReferenceError{Name: u.Name}
			}
			p.Expression = u.Expression
		case TargetVariable:
			v := m.Variable(u.Name)
			if v == nil {
				return &expr.UndefinedReferenceError{Name: u.Name}
			}
			v.Expression = u.Expression
		}
	}
	m.ResetParameters()
	return nil
}

// OverwriteParams evaluates every parameter update once with finalize set
// and locks the parameter to that value. Variable updates are ignored.
func (s *Scenario) OverwriteParams(m *Model) error {
	if s.BaseCase {
		return nil
	}
	for _, u := range s.Updates {
		if u.Target != TargetParameter {
			continue
		}
		p := m.Parameter(u.Name)
		if p == nil {
			return &expr.UndefinedReferenceError{Name: u.Name}
		}
		v, err := expr.Evaluate(u.Expression, m, true)
		if err != nil {
			return fmt.Errorf("%s: %w", u.Name, err)
		}
		p.Value = v
		p.Locked = true
	}
	return nil
}

// ApplySettings copies the scenario's analysis and Markov settings to m.
func (s *Scenario) ApplySettings(m *Model) {
	if s.CohortSize > 0 {
		m.CohortSize = s.CohortSize
	}
	m.CRN = s.CRN1
	m.CRNSeed = s.Seed1
	if s.AnalysisType != "" {
		m.Dimensions.AnalysisType = s.AnalysisType
	}
	if s.Objective != "" {
		m.Dimensions.Objective = s.Objective
	}
	m.Dimensions.ObjectiveDim = s.ObjectiveDim
	m.Dimensions.CostDim = s.CostDim
	m.Dimensions.EffectDim = s.EffectDim
	m.Dimensions.WTP = s.WTP
	m.Dimensions.BaseStrategy = s.BaseStrategy
	m.Dimensions.ExtendedDim = s.ExtendedDim
	m.Markov.HalfCycleCorrection = s.HalfCycleCorrection
	m.Markov.DiscountRewards = s.DiscountRewards
	m.Markov.DiscountRates = slices.Clone(s.DiscountRates)
	m.Markov.DiscountStartCycle = s.DiscountStartCycle
}
