package domain

import (
	"reflect"
)

// ModelDiff represents the changes between two snapshots of a model.
// It is designed to be serialized to JSON for partial updates on the client.
type ModelDiff struct {
	// Model is always present to identify the target.
	Model string `json:"model"`

	// AddedNodes holds nodes whose ID did not exist before, keyed by ID.
	AddedNodes map[int]*Node `json:"added_nodes,omitempty"`

	// RemovedNodes lists IDs that no longer exist.
	RemovedNodes []int `json:"removed_nodes,omitempty"`

	// ChangedNodes holds nodes whose content changed, keyed by ID.
	ChangedNodes map[int]*Node `json:"changed_nodes,omitempty"`

	// Parameters contains changed, added or deleted parameter expressions.
	// For deletions, the key is present with a nil value.
	Parameters map[string]*string `json:"parameters,omitempty"`

	// Variables follows the same convention as Parameters.
	Variables map[string]*string `json:"variables,omitempty"`
}

// Diff calculates the difference between oldModel and newModel.
// If oldModel is nil, it returns a diff representing the entire newModel (initial load).
func Diff(oldModel, newModel *Model) *ModelDiff {
	if newModel == nil {
		return nil
	}

	diff := &ModelDiff{Model: newModel.Name}

	// 1. Node diff by stable ID
	diff.AddedNodes, diff.ChangedNodes, diff.RemovedNodes = diffNodes(oldModel, newModel)

	// 2. Expression diffs
	diff.Parameters = diffExpressions(paramExprs(oldModel), paramExprs(newModel))
	diff.Variables = diffExpressions(varExprs(oldModel), varExprs(newModel))

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffNodes(old, new *Model) (added, changed map[int]*Node, removed []int) {
	before := make(map[int]*Node)
	if old != nil && old.Tree != nil {
		for _, n := range old.Tree.Nodes {
			before[n.ID] = n
		}
	}
	added = make(map[int]*Node)
	changed = make(map[int]*Node)
	seen := make(map[int]bool)
	for _, n := range new.Tree.Nodes {
		seen[n.ID] = true
		prev, exists := before[n.ID]
		if !exists {
			added[n.ID] = n
			continue
		}
		if !reflect.DeepEqual(content(prev), content(n)) || !sameChildren(old.Tree, prev, new.Tree, n) {
			changed[n.ID] = n
		}
	}
	if old != nil && old.Tree != nil {
		for _, n := range old.Tree.Nodes {
			if !seen[n.ID] {
				removed = append(removed, n.ID)
			}
		}
	}
	if len(added) == 0 {
		added = nil
	}
	if len(changed) == 0 {
		changed = nil
	}
	return added, changed, removed
}

// content drops index-valued fields, so renumbering alone is not a change.
func content(n *Node) nodeWire {
	w := n.toWire()
	w.Children = nil
	w.Chain = 0
	return w
}

func sameChildren(ot *Tree, a *Node, nt *Tree, b *Node) bool {
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if ot.Nodes[a.Children[i]].ID != nt.Nodes[b.Children[i]].ID {
			return false
		}
	}
	return true
}

func paramExprs(m *Model) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m.Parameters))
	for _, p := range m.Parameters {
		out[p.Name] = p.Expression
	}
	return out
}

func varExprs(m *Model) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m.Variables))
	for _, v := range m.Variables {
		out[v.Name] = v.Expression
	}
	return out
}

func diffExpressions(old, new map[string]string) map[string]*string {
	delta := make(map[string]*string)

	// Check for Added or Modified
	for k, newVal := range new {
		if oldVal, exists := old[k]; !exists || oldVal != newVal {
			delta[k] = &newVal
		}
	}

	// Check for Deletions
	for k := range old {
		if _, exists := new[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *ModelDiff) IsEmpty() bool {
	return len(d.AddedNodes) == 0 &&
		len(d.RemovedNodes) == 0 &&
		len(d.ChangedNodes) == 0 &&
		len(d.Parameters) == 0 &&
		len(d.Variables) == 0
}
