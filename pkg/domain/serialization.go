package domain

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// nodeWire is the flat persisted form of a Node. Payload fields are present
// only for the kinds that carry them.
type nodeWire struct {
	ID           int      `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Kind         Kind     `json:"kind" yaml:"kind"`
	ParentKind   Kind     `json:"parent_kind" yaml:"parent_kind"`
	Level        int      `json:"level" yaml:"level"`
	Children     []int    `json:"children,omitempty" yaml:"children,omitempty,flow"`
	Prob         string   `json:"prob,omitempty" yaml:"prob,omitempty"`
	Notes        string   `json:"notes,omitempty" yaml:"notes,omitempty"`
	Visible      bool     `json:"visible" yaml:"visible"`
	Collapsed    bool     `json:"collapsed,omitempty" yaml:"collapsed,omitempty"`
	Chain        int      `json:"chain" yaml:"chain"`
	Cost         []string `json:"cost,omitempty" yaml:"cost,omitempty,flow"`
	Rewards      []string `json:"rewards,omitempty" yaml:"rewards,omitempty,flow"`
	VarUpdates   string   `json:"var_updates,omitempty" yaml:"var_updates,omitempty"`
	VarUpdatesT0 string   `json:"var_updates_t0,omitempty" yaml:"var_updates_t0,omitempty"`
	Termination  string   `json:"termination,omitempty" yaml:"termination,omitempty"`
	StateNames   []string `json:"state_names,omitempty" yaml:"state_names,omitempty,flow"`
	Target       string   `json:"target,omitempty" yaml:"target,omitempty"`
}

func (n *Node) toWire() nodeWire {
	w := nodeWire{
		ID:         n.ID,
		Name:       n.Name,
		Kind:       n.Kind,
		ParentKind: n.ParentKind,
		Level:      n.Level,
		Children:   n.Children,
		Prob:       n.Prob,
		Notes:      n.Notes,
		Visible:    n.Visible,
		Collapsed:  n.Collapsed,
		Chain:      n.Chain,
	}
	switch p := n.Payload.(type) {
	case *Decision:
		w.Cost = p.Cost
	case *Chance:
		w.Cost, w.VarUpdates = p.Cost, p.VarUpdates
	case *MarkovChain:
		w.Cost, w.VarUpdates, w.VarUpdatesT0 = p.Cost, p.VarUpdates, p.VarUpdatesT0
		w.Termination, w.StateNames = p.Termination, p.StateNames
	case *MarkovState:
		w.Rewards, w.VarUpdates = p.Rewards, p.VarUpdates
	case *Transition:
		w.Cost, w.Target = p.Cost, p.Target
	}
	return w
}

func (w nodeWire) toNode() (*Node, error) {
	n := &Node{
		ID:         w.ID,
		Name:       w.Name,
		Kind:       w.Kind,
		ParentKind: w.ParentKind,
		Level:      w.Level,
		Children:   w.Children,
		Prob:       w.Prob,
		Notes:      w.Notes,
		Visible:    w.Visible,
		Collapsed:  w.Collapsed,
		Chain:      w.Chain,
	}
	switch w.Kind {
	case KindDecision:
		n.Payload = &Decision{Cost: w.Cost}
	case KindChance:
		n.Payload = &Chance{Cost: w.Cost, VarUpdates: w.VarUpdates}
	case KindMarkovChain:
		n.Payload = &MarkovChain{
			Cost:         w.Cost,
			Termination:  w.Termination,
			StateNames:   w.StateNames,
			VarUpdates:   w.VarUpdates,
			VarUpdatesT0: w.VarUpdatesT0,
		}
	case KindMarkovState:
		n.Payload = &MarkovState{Rewards: w.Rewards, VarUpdates: w.VarUpdates}
	case KindTransition:
		n.Payload = &Transition{Cost: w.Cost, Target: w.Target}
	default:
		return nil, fmt.Errorf("node %d: unsupported kind %s", w.ID, w.Kind)
	}
	return n, nil
}

// MarshalJSON implements json.Marshaler.
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.toWire())
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Node) UnmarshalJSON(data []byte) error {
	w := nodeWire{Chain: -1, Visible: true}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	decoded, err := w.toNode()
	if err != nil {
		return err
	}
	*n = *decoded
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (n *Node) MarshalYAML() (any, error) {
	return n.toWire(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	w := nodeWire{Chain: -1, Visible: true}
	if err := value.Decode(&w); err != nil {
		return err
	}
	decoded, err := w.toNode()
	if err != nil {
		return err
	}
	*n = *decoded
	return nil
}

// ParseModelJSON decodes a model and restores derived tree fields.
func ParseModelJSON(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model json: %w", err)
	}
	return finishDecode(&m)
}

// ParseModelYAML decodes a YAML model and restores derived tree fields.
func ParseModelYAML(data []byte) (*Model, error) {
	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model yaml: %w", err)
	}
	return finishDecode(&m)
}

func finishDecode(m *Model) (*Model, error) {
	dims := m.Dimensions.Count()
	if dims == 0 {
		return nil, fmt.Errorf("model %s: at least one dimension is required", m.Name)
	}
	if m.Tree == nil || len(m.Tree.Nodes) == 0 {
		m.Tree = NewTree(dims)
	}
	if err := m.Tree.CheckLinks(); err != nil {
		return nil, fmt.Errorf("model %s: %w", m.Name, err)
	}
	m.Tree.Dimensions = dims
	next := m.Tree.NextID
	for _, n := range m.Tree.Nodes {
		n.resize(dims)
		next = max(next, n.ID+1)
	}
	m.Tree.NextID = next
	m.Tree.RecomputeChains()
	if m.CohortSize == 0 {
		m.CohortSize = 1
	}
	return m, nil
}

// CheckLinks verifies that every child index is in range, that each node
// has at most one parent, that every node is reachable from the root and
// that the root is a Decision.
func (t *Tree) CheckLinks() error {
	if len(t.Nodes) == 0 || t.Nodes[0].Kind != KindDecision {
		return fmt.Errorf("root must be a decision node")
	}
	parents := make([]int, len(t.Nodes))
	for i, n := range t.Nodes {
		for _, c := range n.Children {
			if c <= 0 || c >= len(t.Nodes) || c == i {
				return fmt.Errorf("node %s: invalid child index %d", n.Name, c)
			}
			parents[c]++
			if parents[c] > 1 {
				return fmt.Errorf("node %s: child %d has more than one parent", n.Name, c)
			}
		}
	}
	reached := make([]bool, len(t.Nodes))
	stack := []int{0}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		reached[i] = true
		stack = append(stack, t.Nodes[i].Children...)
	}
	for i, ok := range reached {
		if !ok {
			return fmt.Errorf("node %s (%d) is unreachable", t.Nodes[i].Name, i)
		}
	}
	return nil
}
