package domain

import (
	"fmt"
	"slices"
)

// Tree is an arena of nodes. Parent, child and chain links are indices into
// Nodes; index 0 is the root Decision.
type Tree struct {
	Nodes      []*Node `json:"nodes" yaml:"nodes"`
	Dimensions int     `json:"dimensions" yaml:"dimensions"`
	// NextID is the identity handed to the next created node.
	NextID int `json:"next_id" yaml:"next_id"`
}

// NewTree returns a tree holding only a root Decision.
func NewTree(dims int) *Tree {
	root := &Node{
		ID:         0,
		Name:       "Root",
		Kind:       KindDecision,
		ParentKind: KindNone,
		Visible:    true,
		Chain:      -1,
		Payload:    &Decision{Cost: zeros(dims)},
	}
	return &Tree{Nodes: []*Node{root}, Dimensions: dims, NextID: 1}
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.Nodes) }

// Root returns the root node.
func (t *Tree) Root() *Node { return t.Nodes[0] }

// Node returns the node at index i.
func (t *Tree) Node(i int) (*Node, error) {
	if i < 0 || i >= len(t.Nodes) {
		return nil, fmt.Errorf("index %d: %w", i, ErrNodeNotFound)
	}
	return t.Nodes[i], nil
}

// Parent returns the parent index of i, or -1 for the root or an unknown index.
func (t *Tree) Parent(i int) int {
	for p, n := range t.Nodes {
		if slices.Contains(n.Children, i) {
			return p
		}
	}
	return -1
}

// Subtree returns the indices of i and all its descendants in pre-order.
func (t *Tree) Subtree(i int) []int {
	var out []int
	var walk func(int)
	walk = func(j int) {
		out = append(out, j)
		for _, c := range t.Nodes[j].Children {
			walk(c)
		}
	}
	walk(i)
	return out
}

// postOrder returns the indices of i and its descendants, children first.
func (t *Tree) postOrder(i int) []int {
	var out []int
	var walk func(int)
	walk = func(j int) {
		for _, c := range t.Nodes[j].Children {
			walk(c)
		}
		out = append(out, j)
	}
	walk(i)
	return out
}

// StateIndex returns the index of the MarkovState named name among the
// children of chain, or -1.
func (t *Tree) StateIndex(chain int, name string) int {
	if chain < 0 || chain >= len(t.Nodes) {
		return -1
	}
	for _, c := range t.Nodes[chain].Children {
		if n := t.Nodes[c]; n.Kind == KindMarkovState && n.Name == name {
			return c
		}
	}
	return -1
}

// ChainPayload returns the MarkovChain payload of the chain at index i.
func (t *Tree) ChainPayload(i int) (*MarkovChain, error) {
	n, err := t.Node(i)
	if err != nil {
		return nil, err
	}
	mc, ok := n.Payload.(*MarkovChain)
	if !ok {
		return nil, fmt.Errorf("node %s is a %s, not a markov chain", n.Name, n.Kind)
	}
	return mc, nil
}

// RecomputeChains rewrites every node's Chain, Level and ParentKind from the
// child lists.
func (t *Tree) RecomputeChains() {
	var walk func(i, level, chain int, parentKind Kind)
	walk = func(i, level, chain int, parentKind Kind) {
		n := t.Nodes[i]
		if n.Kind == KindMarkovChain {
			chain = i
		}
		n.Chain = chain
		n.Level = level
		n.ParentKind = parentKind
		for _, c := range n.Children {
			walk(c, level+1, chain, n.Kind)
		}
	}
	walk(0, 0, -1, KindNone)
}

// Clone returns a deep copy of the tree.
func (t *Tree) Clone() *Tree {
	c := &Tree{Nodes: make([]*Node, len(t.Nodes)), Dimensions: t.Dimensions, NextID: t.NextID}
	for i, n := range t.Nodes {
		c.Nodes[i] = n.Clone()
	}
	return c
}

// Resize sets the dimension count and pads or truncates every vector.
func (t *Tree) Resize(dims int) {
	t.Dimensions = dims
	for _, n := range t.Nodes {
		n.resize(dims)
	}
}

// ClearAnnotations drops every Expected vector.
func (t *Tree) ClearAnnotations() {
	for _, n := range t.Nodes {
		n.Expected = nil
	}
}

// invalidate clears Expected for the subtree at i and all its ancestors.
func (t *Tree) invalidate(i int) {
	for _, j := range t.Subtree(i) {
		t.Nodes[j].Expected = nil
	}
	for p := t.Parent(i); p >= 0; p = t.Parent(p) {
		t.Nodes[p].Expected = nil
	}
}

// Chains returns the indices of every MarkovChain in index order.
func (t *Tree) Chains() []int {
	var out []int
	for i, n := range t.Nodes {
		if n.Kind == KindMarkovChain {
			out = append(out, i)
		}
	}
	return out
}
