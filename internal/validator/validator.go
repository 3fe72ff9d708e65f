// Package validator checks a model's tree and definitions before evaluation.
// Validation is fail-soft: every problem is collected into a Report.
package validator

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/expr"
)

// DefaultTolerance is the allowed deviation of a probability sum from one.
const DefaultTolerance = 1e-9

// reserved names are bound by the engine during chain rollouts.
var reserved = []string{"t", "cycle"}

// Options controls which checks run.
type Options struct {
	// CheckProbs enables probability-sum checks.
	CheckProbs bool
	// Tolerance for probability sums. Zero means DefaultTolerance.
	Tolerance float64
}

// DefaultOptions checks probabilities with DefaultTolerance.
func DefaultOptions() Options {
	return Options{CheckProbs: true, Tolerance: DefaultTolerance}
}

// Issue is one validation failure.
type Issue struct {
	Node    string `json:"node"`
	Index   int    `json:"index"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (i *Issue) Error() string { return fmt.Sprintf("%s: %s", i.Node, i.Message) }

func (i *Issue) Unwrap() error { return i.Err }

// Report lists every issue in walk order.
type Report struct {
	Errors []Issue `json:"errors"`
}

// Checked reports whether the model is eligible for simulation.
func (r *Report) Checked() bool { return len(r.Errors) == 0 }

// Err returns nil for a checked report, otherwise a *domain.AggregateError.
func (r *Report) Err() error {
	if r.Checked() {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i := range r.Errors {
		errs[i] = &r.Errors[i]
	}
	return &domain.AggregateError{Errors: errs}
}

func (r *Report) add(node string, index int, err error) {
	r.Errors = append(r.Errors, Issue{Node: node, Index: index, Message: err.Error(), Err: err})
}

type checker struct {
	m      *domain.Model
	opts   Options
	report *Report
}

func newChecker(m *domain.Model, opts Options) *checker {
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	return &checker{m: m, opts: opts, report: &Report{}}
}

// ParseTree validates the model definitions and every node of the tree.
func ParseTree(m *domain.Model, opts Options) *Report {
	c := newChecker(m, opts)
	c.checkDefinitions()
	for _, i := range m.Tree.Subtree(0) {
		c.checkNode(i)
	}
	return c.report
}

// ParseChain validates a single Markov chain and its subtree.
func ParseChain(m *domain.Model, chain int, opts Options) *Report {
	c := newChecker(m, opts)
	n, err := m.Tree.Node(chain)
	if err != nil {
		c.report.add("tree", chain, err)
		return c.report
	}
	if n.Kind != domain.KindMarkovChain {
		c.report.add(n.Name, chain, fmt.Errorf("node is a %s, not a markov chain", n.Kind))
		return c.report
	}
	for _, i := range m.Tree.Subtree(chain) {
		c.checkNode(i)
	}
	return c.report
}

// checkDefinitions verifies dimension indices, name uniqueness and
// acyclic dependencies.
func (c *checker) checkDefinitions() {
	seen := make(map[string]string)
	claim := func(kind, name string) {
		if name == "" {
			c.report.add(kind, -1, errors.New("name cannot be empty"))
			return
		}
		if slices.Contains(reserved, name) {
			c.report.add(name, -1, fmt.Errorf("%s name %q is reserved", kind, name))
		}
		if prev, ok := seen[name]; ok {
			c.report.add(name, -1, fmt.Errorf("%s name also used by a %s: %w", kind, prev, domain.ErrDuplicateName))
			return
		}
		seen[name] = kind
	}

	if err := c.m.Dimensions.Validate(); err != nil {
		c.report.add("dimensions", -1, err)
	}

	var defs []expr.Definition
	for _, p := range c.m.Parameters {
		claim("parameter", p.Name)
		if !p.Locked {
			defs = append(defs, expr.Definition{Name: p.Name, Expression: p.Expression})
		}
	}
	for _, v := range c.m.Variables {
		claim("variable", v.Name)
		defs = append(defs, expr.Definition{Name: v.Name, Expression: v.Expression})
	}
	for _, t := range c.m.Tables {
		claim("table", t.Name)
		if err := t.Validate(); err != nil {
			c.report.add(t.Name, -1, err)
		}
	}
	if _, err := expr.Order(defs); err != nil {
		c.report.add("model", -1, err)
		return
	}
	for _, p := range c.m.Parameters {
		if p.Locked {
			continue
		}
		if _, err := expr.Evaluate(p.Expression, c.m, false); err != nil {
			c.report.add(p.Name, -1, err)
		}
	}
	for _, v := range c.m.Variables {
		if _, err := expr.Evaluate(v.Expression, c.m, false); err != nil {
			c.report.add(v.Name, -1, err)
		}
	}
}

func (c *checker) evaluator(n *domain.Node) *expr.Evaluator {
	ev := expr.NewEvaluator(c.m, false)
	if n.Chain >= 0 {
		for _, name := range reserved {
			ev.SetLocal(name, expr.Number(0))
		}
	}
	return ev
}

func (c *checker) checkNode(i int) {
	n := c.m.Tree.Nodes[i]
	ev := c.evaluator(n)

	if n.Kind != domain.KindMarkovState {
		c.checkVector(i, "cost", n.Cost(), ev)
	}
	c.checkVarUpdates(i, n.VarUpdates())

	switch p := n.Payload.(type) {
	case *domain.Decision:
		if n.Chain >= 0 {
			c.report.add(n.Name, i, fmt.Errorf("decision node inside a chain: %w", domain.ErrInvalidPlacement))
		}
	case *domain.Chance:
		if n.IsLeaf() && n.Chain >= 0 {
			c.report.add(n.Name, i, errors.New("chance node in a chain must end in transitions"))
		}
		c.checkBranchProbs(i, ev)
	case *domain.MarkovChain:
		c.checkChain(i, p, ev)
	case *domain.MarkovState:
		c.checkVector(i, "rewards", p.Rewards, ev)
		if n.IsLeaf() {
			c.report.add(n.Name, i, errors.New("markov state has no transitions"))
		}
		c.checkBranchProbs(i, ev)
	case *domain.Transition:
		c.checkTransition(i, p)
	default:
		c.report.add(n.Name, i, fmt.Errorf("unsupported node kind %s", n.Kind))
	}
}

func (c *checker) checkVector(i int, field string, vec []string, ev *expr.Evaluator) {
	n := c.m.Tree.Nodes[i]
	if want := c.m.Dimensions.Count(); len(vec) != want {
		c.report.add(n.Name, i, fmt.Errorf("%s has %d entries, expected %d", field, len(vec), want))
	}
	for d, text := range vec {
		if _, err := ev.Float(text); err != nil {
			c.report.add(n.Name, i, fmt.Errorf("%s[%d]: %w", field, d, err))
		}
	}
}

func (c *checker) checkVarUpdates(i int, text string) {
	if text == "" {
		return
	}
	n := c.m.Tree.Nodes[i]
	if _, err := domain.ParseVarUpdates(text, c.m); err != nil {
		c.report.add(n.Name, i, fmt.Errorf("variable updates: %w", err))
	}
}

// checkBranchProbs evaluates the probabilities of i's children.
func (c *checker) checkBranchProbs(i int, ev *expr.Evaluator) {
	n := c.m.Tree.Nodes[i]
	if n.IsLeaf() {
		return
	}
	c.checkProbabilities(i, n.Children, ev)
}

// checkProbabilities evaluates the Prob of each index in branches and,
// with CheckProbs, verifies they sum to one.
func (c *checker) checkProbabilities(owner int, branches []int, ev *expr.Evaluator) {
	n := c.m.Tree.Nodes[owner]
	sum, complements, ok := 0.0, 0, true
	for _, b := range branches {
		child := c.m.Tree.Nodes[b]
		if child.Prob == domain.Complement {
			complements++
			continue
		}
		p, err := ev.Float(child.Prob)
		if err != nil {
			c.report.add(child.Name, b, fmt.Errorf("probability: %w", err))
			ok = false
			continue
		}
		if p < -c.opts.Tolerance || p > 1+c.opts.Tolerance {
			c.report.add(child.Name, b, fmt.Errorf("probability %g is outside [0, 1]", p))
		}
		sum += p
	}
	if complements > 1 {
		c.report.add(n.Name, owner, fmt.Errorf("%d complementary probabilities, at most one is allowed", complements))
		return
	}
	if !ok || !c.opts.CheckProbs {
		return
	}
	if complements == 1 {
		if sum > 1+c.opts.Tolerance {
			c.report.add(n.Name, owner, &domain.ProbabilityMismatchError{Node: n.Name, Sum: sum, Tolerance: c.opts.Tolerance})
		}
		return
	}
	if math.Abs(sum-1) > c.opts.Tolerance {
		c.report.add(n.Name, owner, &domain.ProbabilityMismatchError{Node: n.Name, Sum: sum, Tolerance: c.opts.Tolerance})
	}
}

func (c *checker) checkChain(i int, p *domain.MarkovChain, ev *expr.Evaluator) {
	n := c.m.Tree.Nodes[i]

	// 1. States and their names
	var states []int
	for _, ch := range n.Children {
		if c.m.Tree.Nodes[ch].Kind == domain.KindMarkovState {
			states = append(states, ch)
		}
	}
	if len(states) == 0 {
		c.report.add(n.Name, i, errors.New("markov chain has no states"))
	}
	names := make(map[string]bool)
	for _, s := range p.StateNames {
		if names[s] {
			c.report.add(n.Name, i, fmt.Errorf("state %q: %w", s, domain.ErrDuplicateName))
		}
		names[s] = true
	}
	for _, s := range states {
		if !names[c.m.Tree.Nodes[s].Name] {
			c.report.add(c.m.Tree.Nodes[s].Name, s, fmt.Errorf("state is not listed in chain %s", n.Name))
		}
	}
	if len(p.StateNames) != len(states) {
		c.report.add(n.Name, i, fmt.Errorf("chain lists %d state names but has %d states", len(p.StateNames), len(states)))
	}

	// 2. Initial occupancy
	if len(states) > 0 {
		c.checkProbabilities(i, states, ev)
	}

	// 3. Termination
	if p.Termination == "" {
		c.report.add(n.Name, i, errors.New("termination condition is empty"))
	} else if _, err := ev.Truth(p.Termination); err != nil {
		c.report.add(n.Name, i, fmt.Errorf("termination: %w", err))
	}

	// 4. Cycle-0 updates
	c.checkVarUpdates(i, p.VarUpdatesT0)
}

func (c *checker) checkTransition(i int, p *domain.Transition) {
	n := c.m.Tree.Nodes[i]
	if n.Chain < 0 {
		c.report.add(n.Name, i, fmt.Errorf("transition outside a chain: %w", domain.ErrInvalidPlacement))
		return
	}
	mc, err := c.m.Tree.ChainPayload(n.Chain)
	if err != nil {
		c.report.add(n.Name, i, err)
		return
	}
	if !slices.Contains(mc.StateNames, p.Target) {
		c.report.add(n.Name, i, &expr.UndefinedReferenceError{Name: p.Target, Kind: "state"})
	}
}
