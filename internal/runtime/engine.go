// Package runtime evaluates models: deterministic rollouts, Markov chain
// cohorts, ICERs and probabilistic sensitivity analysis.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/arbor/internal/validator"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/expr"
)

// Engine evaluates models. It holds no per-run state and may be shared;
// each Run mutates only the model it is given.
type Engine struct {
	logger    *slog.Logger
	hooks     domain.LifecycleHooks
	maxCycles int
	tolerance float64
	policy    DecisionPolicy
}

// NewEngine creates an engine with the given options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:    defaultLogger(),
		maxCycles: DefaultMaxCycles,
		tolerance: DefaultTolerance,
		policy:    OptimizeObjective{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate checks the whole tree with probability sums enforced.
// A report without errors means the model is eligible for Run.
func (e *Engine) Validate(m *domain.Model) *validator.Report {
	return validator.ParseTree(m, validator.Options{CheckProbs: true, Tolerance: e.tolerance})
}

// Branch is the outcome of one level-1 strategy.
type Branch struct {
	Index  int       `json:"index"`
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
	Chosen bool      `json:"chosen"`
}

// Result is the outcome of one evaluation pass.
type Result struct {
	Model      string   `json:"model"`
	Dimensions []string `json:"dimensions"`
	// Expected maps node index to its outcome vector.
	Expected map[int][]float64 `json:"expected"`
	// Branches are the root's children in order.
	Branches []Branch `json:"branches"`
	// Chains maps chain index to its cohort trace.
	Chains map[int]*ChainTrace `json:"chains,omitempty"`
}

// Branch returns the level-1 branch named name.
func (r *Result) Branch(name string) (Branch, bool) {
	for _, b := range r.Branches {
		if b.Name == name {
			return b, true
		}
	}
	return Branch{}, false
}

// Run evaluates the whole tree once. Parameters are resolved first unless
// KeepParameters is given; variables are initialized per chain. The first
// failure aborts the run and is returned as a *domain.EvaluationError.
func (e *Engine) Run(ctx context.Context, m *domain.Model, opts ...RunOption) (*Result, error) {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	start := time.Now()
	if e.hooks.OnRunStart != nil {
		e.hooks.OnRunStart(ctx, &domain.RunEvent{
			EventBase: domain.EventBase{Timestamp: start, Type: domain.EventRunStart, Model: m.Name},
			Sampled:   cfg.finalize,
		})
	}

	res, err := e.run(ctx, m, cfg)

	if e.hooks.OnRunFinish != nil {
		e.hooks.OnRunFinish(ctx, &domain.RunEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventRunFinish, Model: m.Name},
			Sampled:   cfg.finalize,
			Duration:  time.Since(start),
			Err:       err,
		})
	}
	if err != nil {
		e.logger.Error("Run failed", "model", m.Name, "error", err)
		return nil, err
	}
	e.logger.Debug("Run finished", "model", m.Name, "duration", time.Since(start))
	return res, nil
}

func (e *Engine) run(ctx context.Context, m *domain.Model, cfg runConfig) (*Result, error) {
	// 1. Prepare context
	if !cfg.keepParams {
		m.ResetParameters()
		if err := m.ResolveParameters(cfg.finalize); err != nil {
			return nil, &domain.EvaluationError{Node: "parameters", Err: err}
		}
	}
	if err := m.InitVariables(cfg.finalize); err != nil {
		return nil, &domain.EvaluationError{Node: "variables", Err: err}
	}
	m.Tree.ClearAnnotations()

	// 2. Walk the tree
	w := &walker{
		engine:   e,
		ctx:      ctx,
		m:        m,
		finalize: cfg.finalize,
		res: &Result{
			Model:      m.Name,
			Dimensions: m.Dimensions.Names,
			Expected:   make(map[int][]float64, m.Tree.Len()),
		},
	}
	if _, err := w.eval(0); err != nil {
		return nil, err
	}

	// 3. Collect level-1 branches
	root := m.Tree.Root()
	chosen := w.choices[0]
	for pos, c := range root.Children {
		w.res.Branches = append(w.res.Branches, Branch{
			Index:  c,
			Name:   m.Tree.Nodes[c].Name,
			Values: w.res.Expected[c],
			Chosen: pos == chosen,
		})
	}
	return w.res, nil
}

// walker carries the state of one evaluation pass.
type walker struct {
	engine   *Engine
	ctx      context.Context
	m        *domain.Model
	finalize bool
	res      *Result
	// choices maps decision index to the chosen child position.
	choices map[int]int
}

func (w *walker) evaluator(locals map[string]float64) *expr.Evaluator {
	ev := expr.NewEvaluator(w.m, w.finalize).UseStream(expr.StreamTree)
	for k, v := range locals {
		ev.SetLocal(k, expr.Number(v))
	}
	return ev
}

func (w *walker) fail(i int, err error) error {
	return &domain.EvaluationError{Node: w.m.Tree.Nodes[i].Name, Err: err}
}

func (w *walker) record(i int, v []float64) []float64 {
	w.res.Expected[i] = v
	w.m.Tree.Nodes[i].Expected = v
	return v
}

// eval returns the expected outcome vector of the subtree at i.
func (w *walker) eval(i int) ([]float64, error) {
	if err := w.ctx.Err(); err != nil {
		return nil, err
	}
	n := w.m.Tree.Nodes[i]
	var locals map[string]float64
	if n.Kind == domain.KindMarkovChain {
		// The chain's own cost is charged once, at cycle 0.
		locals = map[string]float64{"t": 0, "cycle": 0}
	}
	ev := w.evaluator(locals)

	cost, err := w.vector(ev, n.Cost())
	if err != nil {
		return nil, w.fail(i, fmt.Errorf("cost: %w", err))
	}

	switch p := n.Payload.(type) {
	case *domain.Decision:
		return w.evalDecision(i, cost)
	case *domain.Chance:
		if err := w.applyVarUpdates(ev, p.VarUpdates); err != nil {
			return nil, w.fail(i, err)
		}
		return w.evalChance(i, cost, ev)
	case *domain.MarkovChain:
		v, err := w.rollout(i)
		if err != nil {
			return nil, err
		}
		return w.record(i, add(v, cost)), nil
	case *domain.MarkovState, *domain.Transition:
		return nil, w.fail(i, fmt.Errorf("%s outside a markov chain: %w", n.Kind, domain.ErrInvalidPlacement))
	}
	return nil, w.fail(i, fmt.Errorf("unsupported node kind %s", n.Kind))
}

func (w *walker) evalDecision(i int, cost []float64) ([]float64, error) {
	n := w.m.Tree.Nodes[i]
	if n.IsLeaf() {
		return w.record(i, cost), nil
	}
	values := make([][]float64, len(n.Children))
	for pos, c := range n.Children {
		v, err := w.eval(c)
		if err != nil {
			return nil, err
		}
		values[pos] = v
	}
	pick, err := w.engine.policy.Choose(w.m, n, values)
	if err != nil {
		return nil, w.fail(i, err)
	}
	if pick < 0 || pick >= len(values) {
		return nil, w.fail(i, fmt.Errorf("decision policy chose branch %d of %d", pick, len(values)))
	}
	if w.choices == nil {
		w.choices = make(map[int]int)
	}
	w.choices[i] = pick
	return w.record(i, add(cost, values[pick])), nil
}

// evalChance computes Σ p·child + cost. Probabilities are not renormalized.
func (w *walker) evalChance(i int, cost []float64, ev *expr.Evaluator) ([]float64, error) {
	n := w.m.Tree.Nodes[i]
	if n.IsLeaf() {
		return w.record(i, cost), nil
	}
	probs, err := w.branchProbs(ev, n.Children)
	if err != nil {
		return nil, err
	}
	total := cost
	for pos, c := range n.Children {
		v, err := w.eval(c)
		if err != nil {
			return nil, err
		}
		total = add(total, scale(v, probs[pos]))
	}
	return w.record(i, total), nil
}

// branchProbs evaluates the Prob of each branch. A complement takes
// 1 minus the sum of the others.
func (w *walker) branchProbs(ev *expr.Evaluator, branches []int) ([]float64, error) {
	probs := make([]float64, len(branches))
	comp, sum := -1, 0.0
	for pos, b := range branches {
		child := w.m.Tree.Nodes[b]
		if child.Prob == domain.Complement {
			if comp >= 0 {
				return nil, w.fail(b, fmt.Errorf("more than one complementary probability"))
			}
			comp = pos
			continue
		}
		p, err := ev.Float(child.Prob)
		if err != nil {
			return nil, w.fail(b, fmt.Errorf("probability: %w", err))
		}
		probs[pos] = p
		sum += p
	}
	if comp >= 0 {
		probs[comp] = 1 - sum
	}
	return probs, nil
}

func (w *walker) vector(ev *expr.Evaluator, texts []string) ([]float64, error) {
	out := make([]float64, w.m.Dimensions.Count())
	for d, text := range texts {
		if d >= len(out) {
			break
		}
		v, err := ev.Float(text)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", d, err)
		}
		out[d] = v
	}
	return out, nil
}

// applyVarUpdates evaluates and assigns each clause in order.
func (w *walker) applyVarUpdates(ev *expr.Evaluator, text string) error {
	if text == "" {
		return nil
	}
	updates, err := domain.ParseVarUpdates(text, w.m)
	if err != nil {
		return fmt.Errorf("variable updates: %w", err)
	}
	for _, u := range updates {
		v, err := ev.Evaluate(u.Expression)
		if err != nil {
			return fmt.Errorf("variable %s: %w", u.Name, err)
		}
		if err := w.m.SetVariable(u.Name, v); err != nil {
			return err
		}
	}
	return nil
}

func add(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for d := range a {
		out[d] = a[d]
		if d < len(b) {
			out[d] += b[d]
		}
	}
	return out
}

func scale(v []float64, k float64) []float64 {
	out := make([]float64, len(v))
	for d := range v {
		out[d] = v[d] * k
	}
	return out
}
