package dsl

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/expr"
)

// Complement is the probability that takes whatever its siblings leave.
const Complement = domain.Complement

// Builder manages the model construction.
type Builder struct {
	model *domain.Model
	errs  []error
}

// New creates a new model builder. With no dims the model has a single
// Cost dimension.
func New(name string, dims ...string) *Builder {
	return &Builder{model: domain.NewModel(name, dims...)}
}

func (b *Builder) fail(err error) {
	b.errs = append(b.errs, err)
}

// Root returns the builder of the root decision node.
func (b *Builder) Root() *NodeBuilder {
	return &NodeBuilder{builder: b, index: 0}
}

// Param adds a parameter.
func (b *Builder) Param(name, expression string) *Builder {
	b.model.Parameters = append(b.model.Parameters, &domain.Parameter{Name: name, Expression: expression})
	return b
}

// Locked adds a parameter frozen at value.
func (b *Builder) Locked(name string, value float64) *Builder {
	b.model.Parameters = append(b.model.Parameters, &domain.Parameter{
		Name:       name,
		Expression: fmt.Sprint(value),
		Locked:     true,
		Value:      expr.Number(value),
	})
	return b
}

// Var adds a variable.
func (b *Builder) Var(name, expression string) *Builder {
	b.model.Variables = append(b.model.Variables, &domain.Variable{Name: name, Expression: expression})
	return b
}

// Table adds a lookup table. The first column holds the keys.
func (b *Builder) Table(name string, kind domain.TableType, headers []string, rows ...[]float64) *Builder {
	t := &domain.Table{Name: name, Type: kind, Headers: headers, Data: rows}
	if err := t.Validate(); err != nil {
		b.fail(err)
	}
	b.model.Tables = append(b.model.Tables, t)
	return b
}

// CEA switches to cost-effectiveness analysis on the given dimensions.
func (b *Builder) CEA(costDim, effectDim int, wtp float64) *Builder {
	d := &b.model.Dimensions
	d.AnalysisType = domain.AnalysisCEA
	d.CostDim, d.EffectDim, d.WTP = costDim, effectDim, wtp
	return b
}

// Minimize makes decisions pick the lowest value on dim.
func (b *Builder) Minimize(dim int) *Builder {
	b.model.Dimensions.Objective = domain.Minimize
	b.model.Dimensions.ObjectiveDim = dim
	return b
}

// Markov configures every chain rollout.
func (b *Builder) Markov(settings domain.MarkovSettings) *Builder {
	b.model.Markov = settings
	return b
}

// Cohort sets the chain cohort size.
func (b *Builder) Cohort(size int) *Builder {
	b.model.CohortSize = size
	return b
}

// Scenario adds a named scenario with the given overrides, e.g.
// "pWin = 0.9; cost = 12". It snapshots the settings configured so far.
func (b *Builder) Scenario(name string, iterations int, updates string) *Builder {
	sc := domain.NewScenario(b.model)
	sc.Name = name
	sc.NumIterations = iterations
	sc.ObjectUpdates = updates
	b.model.Scenarios = append(b.model.Scenarios, sc)
	return b
}

// Build returns the model, or every construction error joined.
func (b *Builder) Build() (*domain.Model, error) {
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("failed to build model %s: %w", b.model.Name, errors.Join(b.errs...))
	}
	return b.model.Clone(), nil
}

// Store builds the model into a new memory store under its name.
func (b *Builder) Store() (*memory.Store, error) {
	m, err := b.Build()
	if err != nil {
		return nil, err
	}
	store := memory.NewStore()
	if err := store.Save(context.Background(), m.Name, m); err != nil {
		return nil, fmt.Errorf("failed to build memory store: %w", err)
	}
	return store, nil
}
