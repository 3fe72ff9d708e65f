package domain

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/aretw0/arbor/pkg/expr"
)

// Reference locates one expression that mentions a name.
type Reference struct {
	// Node is the tree index, or -1 for a parameter or variable definition.
	Node  int    `json:"node"`
	Owner string `json:"owner"`
	Field string `json:"field"`
	Text  string `json:"text"`
}

// Fields returns every expression held by the node, labelled by field name.
func (n *Node) Fields() map[string]string {
	out := make(map[string]string)
	if n.Prob != "" {
		out["prob"] = n.Prob
	}
	for d, c := range n.Cost() {
		out["cost["+strconv.Itoa(d)+"]"] = c
	}
	switch p := n.Payload.(type) {
	case *MarkovChain:
		out["termination"] = p.Termination
		out["var_updates_t0"] = p.VarUpdatesT0
	case *MarkovState:
		for d, r := range p.Rewards {
			out["rewards["+strconv.Itoa(d)+"]"] = r
		}
	}
	if u := n.VarUpdates(); u != "" {
		out["var_updates"] = u
	}
	return out
}

// References returns every node field that mentions name as a whole word.
func (t *Tree) References(name string) []Reference {
	var out []Reference
	for i, n := range t.Nodes {
		for field, text := range n.Fields() {
			if expr.ContainsWord(name, text) {
				out = append(out, Reference{Node: i, Owner: n.Name, Field: field, Text: text})
			}
		}
	}
	slices.SortFunc(out, func(a, b Reference) int {
		return cmp.Or(cmp.Compare(a.Node, b.Node), cmp.Compare(a.Field, b.Field))
	})
	return out
}

// References extends Tree.References with parameter and variable definitions.
func (m *Model) References(name string) []Reference {
	var out []Reference
	for _, p := range m.Parameters {
		if p.Name != name && expr.ContainsWord(name, p.Expression) {
			out = append(out, Reference{Node: -1, Owner: p.Name, Field: "parameter", Text: p.Expression})
		}
	}
	for _, v := range m.Variables {
		if v.Name != name && expr.ContainsWord(name, v.Expression) {
			out = append(out, Reference{Node: -1, Owner: v.Name, Field: "variable", Text: v.Expression})
		}
	}
	return append(out, m.Tree.References(name)...)
}
