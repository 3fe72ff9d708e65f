package domain

import (
	"fmt"
	"slices"
)

// Kind is the node type tag.
type Kind int

const (
	// KindNone is the ParentKind of the root.
	KindNone Kind = iota - 1
	KindDecision
	KindMarkovChain
	KindMarkovState
	KindChance
	KindTransition
)

var kindNames = map[Kind]string{
	KindNone:        "none",
	KindDecision:    "decision",
	KindMarkovChain: "markov_chain",
	KindMarkovState: "markov_state",
	KindChance:      "chance",
	KindTransition:  "transition",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a kind name back to its tag.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindNone, fmt.Errorf("unknown node kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Complement is the probability expression meaning 1 minus the sum of the
// sibling probabilities. At most one child of a parent may use it.
const Complement = "C"

// Node is a single point in the tree. Kind-specific fields live in Payload.
type Node struct {
	// ID is a stable identity, never reused within one tree.
	ID         int
	Name       string
	Kind       Kind
	ParentKind Kind
	Level      int
	Children   []int
	// Prob is the edge probability from the parent. For a MarkovState it is
	// the initial occupancy of that state.
	Prob      string
	Notes     string
	Visible   bool
	Collapsed bool
	// Chain is the index of the nearest MarkovChain ancestor, the node itself
	// when it is a chain, or -1 outside any chain.
	Chain   int
	Payload Payload

	// Expected holds the last evaluated outcome vector. It is not persisted.
	Expected []float64
}

// Payload carries the fields that only one kind of node has.
// The concrete types are *Decision, *Chance, *MarkovChain, *MarkovState and *Transition.
type Payload interface {
	Kind() Kind
	clone() Payload
}

// Decision is a choice between strategies.
type Decision struct {
	Cost []string
}

// Chance is a probabilistic split.
type Chance struct {
	Cost       []string
	VarUpdates string
}

// MarkovChain is the root of a cohort rollout.
type MarkovChain struct {
	Cost         []string
	Termination  string
	StateNames   []string
	VarUpdates   string
	VarUpdatesT0 string
}

// MarkovState is a health state inside a chain.
type MarkovState struct {
	Rewards    []string
	VarUpdates string
}

// Transition moves occupancy to the state named Target. The name is
// resolved at evaluation time.
type Transition struct {
	Cost   []string
	Target string
}

func (*Decision) Kind() Kind    { return KindDecision }
func (*Chance) Kind() Kind      { return KindChance }
func (*MarkovChain) Kind() Kind { return KindMarkovChain }
func (*MarkovState) Kind() Kind { return KindMarkovState }
func (*Transition) Kind() Kind  { return KindTransition }

func (p *Decision) clone() Payload { return &Decision{Cost: slices.Clone(p.Cost)} }
func (p *Chance) clone() Payload {
	return &Chance{Cost: slices.Clone(p.Cost), VarUpdates: p.VarUpdates}
}
func (p *MarkovChain) clone() Payload {
	c := *p
	c.Cost = slices.Clone(p.Cost)
	c.StateNames = slices.Clone(p.StateNames)
	return &c
}
func (p *MarkovState) clone() Payload {
	return &MarkovState{Rewards: slices.Clone(p.Rewards), VarUpdates: p.VarUpdates}
}
func (p *Transition) clone() Payload { return &Transition{Cost: slices.Clone(p.Cost), Target: p.Target} }

// NewPayload returns an empty payload for kind with vectors sized to dims.
func NewPayload(kind Kind, dims int) (Payload, error) {
	switch kind {
	case KindDecision:
		return &Decision{Cost: zeros(dims)}, nil
	case KindChance:
		return &Chance{Cost: zeros(dims)}, nil
	case KindMarkovChain:
		return &MarkovChain{Cost: zeros(dims)}, nil
	case KindMarkovState:
		return &MarkovState{Rewards: zeros(dims)}, nil
	case KindTransition:
		return &Transition{Cost: zeros(dims)}, nil
	}
	return nil, fmt.Errorf("unknown node kind %d", int(kind))
}

func zeros(n int) []string {
	v := make([]string, n)
	for i := range v {
		v[i] = "0"
	}
	return v
}

// Cost returns the node's cost vector, or nil for a MarkovState.
func (n *Node) Cost() []string {
	switch p := n.Payload.(type) {
	case *Decision:
		return p.Cost
	case *Chance:
		return p.Cost
	case *MarkovChain:
		return p.Cost
	case *Transition:
		return p.Cost
	case *MarkovState:
		return nil
	}
	return nil
}

// VarUpdates returns the per-cycle variable update text, if the kind has one.
func (n *Node) VarUpdates() string {
	switch p := n.Payload.(type) {
	case *Chance:
		return p.VarUpdates
	case *MarkovChain:
		return p.VarUpdates
	case *MarkovState:
		return p.VarUpdates
	case *Decision, *Transition:
		return ""
	}
	return ""
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	c.Children = slices.Clone(n.Children)
	c.Expected = slices.Clone(n.Expected)
	if n.Payload != nil {
		c.Payload = n.Payload.clone()
	}
	return &c
}

// resize pads or truncates every vector to dims entries.
func (n *Node) resize(dims int) {
	fit := func(v []string) []string {
		if len(v) >= dims {
			return v[:dims]
		}
		return append(v, zeros(dims-len(v))...)
	}
	switch p := n.Payload.(type) {
	case *Decision:
		p.Cost = fit(p.Cost)
	case *Chance:
		p.Cost = fit(p.Cost)
	case *MarkovChain:
		p.Cost = fit(p.Cost)
	case *MarkovState:
		p.Rewards = fit(p.Rewards)
	case *Transition:
		p.Cost = fit(p.Cost)
	}
}
