package domain

import (
	"fmt"
	"slices"
	"strconv"
)

// AddChild appends a new node of kind under parent and returns its index.
func (t *Tree) AddChild(parent int, kind Kind) (int, error) {
	p, err := t.Node(parent)
	if err != nil {
		return -1, err
	}
	if p.Kind == KindTransition {
		return -1, ErrLeafNode
	}
	if err := checkPlacement(p, kind); err != nil {
		return -1, err
	}
	payload, err := NewPayload(kind, t.Dimensions)
	if err != nil {
		return -1, err
	}

	idx := len(t.Nodes)
	n := &Node{
		ID:         t.NextID,
		Name:       defaultName(kind),
		Kind:       kind,
		ParentKind: p.Kind,
		Level:      p.Level + 1,
		Visible:    p.Visible && !p.Collapsed,
		Chain:      p.Chain,
		Payload:    payload,
	}
	t.NextID++
	if p.Kind != KindDecision {
		n.Prob = "0"
	}
	switch kind {
	case KindMarkovChain:
		n.Chain = idx
	case KindMarkovState:
		mc := p.Payload.(*MarkovChain)
		n.Name = uniqueName("State", mc.StateNames, 1)
		mc.StateNames = append(mc.StateNames, n.Name)
	}

	t.Nodes = append(t.Nodes, n)
	p.Children = append(p.Children, idx)
	t.invalidate(parent)
	return idx, nil
}

func defaultName(kind Kind) string {
	switch kind {
	case KindDecision:
		return "Decision"
	case KindChance:
		return "Chance"
	case KindMarkovChain:
		return "Markov Chain"
	case KindMarkovState:
		return "State"
	case KindTransition:
		return "Transition"
	}
	return ""
}

// uniqueName returns base+n for the first n >= start not present in taken.
func uniqueName(base string, taken []string, start int) string {
	for n := start; ; n++ {
		name := base + strconv.Itoa(n)
		if !slices.Contains(taken, name) {
			return name
		}
	}
}

// checkPlacement enforces where each kind may appear:
// states only directly under chains, chains only directly hold states,
// no chains or decisions inside a chain, transitions only inside a chain.
func checkPlacement(parent *Node, kind Kind) error {
	inChain := parent.Chain >= 0
	switch {
	case parent.Kind == KindMarkovChain && kind != KindMarkovState:
		return fmt.Errorf("%w: a markov chain may only contain states, not a %s", ErrInvalidPlacement, kind)
	case kind == KindMarkovState && parent.Kind != KindMarkovChain:
		return fmt.Errorf("%w: a markov state must be a direct child of a chain", ErrInvalidPlacement)
	case kind == KindMarkovChain && inChain:
		return fmt.Errorf("%w: chains cannot be nested", ErrInvalidPlacement)
	case kind == KindDecision && inChain:
		return fmt.Errorf("%w: decision nodes are not allowed inside a chain", ErrInvalidPlacement)
	case kind == KindTransition && !inChain:
		return fmt.Errorf("%w: transitions must be inside a chain", ErrInvalidPlacement)
	}
	return nil
}

// RemoveSubtree deletes root and all its descendants, then renumbers every
// surviving index in a single pass against the original index space.
func (t *Tree) RemoveSubtree(root int) error {
	if _, err := t.Node(root); err != nil {
		return err
	}
	if root == 0 {
		return ErrRootNode
	}
	t.invalidate(root)

	// 1. Collect post-order and detach state names from surviving chains
	removed := t.postOrder(root)
	gone := make([]bool, len(t.Nodes))
	for _, i := range removed {
		gone[i] = true
	}
	for _, i := range removed {
		n := t.Nodes[i]
		if n.Kind != KindMarkovState || n.Chain < 0 || gone[n.Chain] {
			continue
		}
		mc := t.Nodes[n.Chain].Payload.(*MarkovChain)
		mc.StateNames = slices.DeleteFunc(mc.StateNames, func(s string) bool { return s == n.Name })
	}

	// 2. New position of every original index
	newIndex := make([]int, len(t.Nodes))
	shift := 0
	for i := range t.Nodes {
		newIndex[i] = i - shift
		if gone[i] {
			shift++
		}
	}

	// 3. Compact and rewrite references
	kept := make([]*Node, 0, len(t.Nodes)-len(removed))
	for i, n := range t.Nodes {
		if gone[i] {
			continue
		}
		children := n.Children[:0]
		for _, c := range n.Children {
			if !gone[c] {
				children = append(children, newIndex[c])
			}
		}
		n.Children = children
		if n.Chain >= 0 {
			if gone[n.Chain] {
				n.Chain = -1
			} else {
				n.Chain = newIndex[n.Chain]
			}
		}
		kept = append(kept, n)
	}
	t.Nodes = kept
	return nil
}

// CopySubtree returns a detached deep copy of the subtree at root. The copy's
// index 0 is the copied root and relative child order is preserved.
func (t *Tree) CopySubtree(root int) (*Tree, error) {
	if _, err := t.Node(root); err != nil {
		return nil, err
	}
	order := t.Subtree(root)
	pos := make(map[int]int, len(order))
	for i, old := range order {
		pos[old] = i
	}
	sub := &Tree{Nodes: make([]*Node, len(order)), Dimensions: t.Dimensions, NextID: t.NextID}
	base := t.Nodes[root].Level
	for i, old := range order {
		n := t.Nodes[old].Clone()
		n.Expected = nil
		n.Level -= base
		for j, c := range n.Children {
			n.Children[j] = pos[c]
		}
		if p, ok := pos[n.Chain]; ok {
			n.Chain = p
		} else {
			n.Chain = -1
		}
		sub.Nodes[i] = n
	}
	sub.Nodes[0].ParentKind = KindNone
	return sub, nil
}

// PasteSubtree appends a copy of sub under parent and returns the index of
// the pasted root. A pasted state is renamed Name_2, Name_3, ... when its
// name is already taken in the chain.
func (t *Tree) PasteSubtree(parent int, sub *Tree) (int, error) {
	p, err := t.Node(parent)
	if err != nil {
		return -1, err
	}
	if p.Kind == KindTransition {
		return -1, ErrLeafNode
	}
	if sub == nil || len(sub.Nodes) == 0 {
		return -1, fmt.Errorf("paste: empty subtree")
	}
	if sub.Dimensions != t.Dimensions {
		return -1, fmt.Errorf("%w: subtree has %d, tree has %d", ErrIncompatibleDimensions, sub.Dimensions, t.Dimensions)
	}
	if err := checkPastePlacement(p, sub); err != nil {
		return -1, err
	}

	offset := len(t.Nodes)
	for _, src := range sub.Nodes {
		n := src.Clone()
		n.ID = t.NextID
		t.NextID++
		n.Expected = nil
		for j, c := range n.Children {
			n.Children[j] = c + offset
		}
		t.Nodes = append(t.Nodes, n)
	}
	p.Children = append(p.Children, offset)

	root := t.Nodes[offset]
	if p.Kind == KindMarkovChain {
		mc := p.Payload.(*MarkovChain)
		if slices.Contains(mc.StateNames, root.Name) {
			base := root.Name + "_"
			root.Name = uniqueName(base, mc.StateNames, 2)
		}
		mc.StateNames = append(mc.StateNames, root.Name)
	}

	t.RecomputeChains()
	t.showSubtree(offset, p.Visible && !p.Collapsed)
	t.invalidate(parent)
	return offset, nil
}

func checkPastePlacement(parent *Node, sub *Tree) error {
	if err := checkPlacement(parent, sub.Nodes[0].Kind); err != nil {
		return err
	}
	// Every node below the pasted root must also be legal once attached.
	inChain := parent.Chain >= 0 || parent.Kind == KindMarkovChain
	var walk func(i int, inChain bool) error
	walk = func(i int, inChain bool) error {
		n := sub.Nodes[i]
		switch {
		case inChain && (n.Kind == KindMarkovChain || n.Kind == KindDecision):
			return fmt.Errorf("%w: %s %q cannot be pasted inside a chain", ErrInvalidPlacement, n.Kind, n.Name)
		case !inChain && (n.Kind == KindMarkovState || n.Kind == KindTransition):
			return fmt.Errorf("%w: %s %q must be inside a chain", ErrInvalidPlacement, n.Kind, n.Name)
		}
		for _, c := range n.Children {
			if err := walk(c, inChain || n.Kind == KindMarkovChain); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(0, inChain)
}

// ChangeType switches a node between Chance and Transition.
func (t *Tree) ChangeType(i int, kind Kind) error {
	n, err := t.Node(i)
	if err != nil {
		return err
	}
	if n.Kind == kind {
		return nil
	}
	switch {
	case n.Kind == KindChance && kind == KindTransition:
		if len(n.Children) > 0 {
			return fmt.Errorf("%w: %s has children", ErrInvalidTypeChange, n.Name)
		}
		if n.Chain < 0 {
			return fmt.Errorf("%w: %s is outside a markov chain", ErrInvalidTypeChange, n.Name)
		}
		n.Payload = &Transition{Cost: n.Payload.(*Chance).Cost}
	case n.Kind == KindTransition && kind == KindChance:
		n.Payload = &Chance{Cost: n.Payload.(*Transition).Cost}
	default:
		return fmt.Errorf("%w: %s to %s", ErrInvalidTypeChange, n.Kind, kind)
	}
	n.Kind = kind
	for _, c := range n.Children {
		t.Nodes[c].ParentKind = kind
	}
	t.invalidate(i)
	return nil
}

// RenameState renames a MarkovState, keeps the chain's state list in sync
// and retargets every Transition in the chain that pointed at the old name.
func (t *Tree) RenameState(i int, name string) error {
	n, err := t.Node(i)
	if err != nil {
		return err
	}
	if n.Kind != KindMarkovState || n.Chain < 0 {
		return fmt.Errorf("node %s is not a markov state", n.Name)
	}
	if name == "" {
		return fmt.Errorf("state name cannot be empty")
	}
	if name == n.Name {
		return nil
	}
	mc := t.Nodes[n.Chain].Payload.(*MarkovChain)
	if slices.Contains(mc.StateNames, name) {
		return fmt.Errorf("state %q in chain %s: %w", name, t.Nodes[n.Chain].Name, ErrDuplicateName)
	}

	old := n.Name
	if j := slices.Index(mc.StateNames, old); j >= 0 {
		mc.StateNames[j] = name
	} else {
		mc.StateNames = append(mc.StateNames, name)
	}
	for _, j := range t.Subtree(n.Chain) {
		if tr, ok := t.Nodes[j].Payload.(*Transition); ok && tr.Target == old {
			tr.Target = name
		}
	}
	n.Name = name
	return nil
}

// Rename sets the name of any node. States are routed through RenameState.
func (t *Tree) Rename(i int, name string) error {
	n, err := t.Node(i)
	if err != nil {
		return err
	}
	if n.Kind == KindMarkovState {
		return t.RenameState(i, name)
	}
	n.Name = name
	return nil
}

// SetCollapsed collapses or expands the node, hiding or showing its
// descendants. Collapsed descendants keep their own children hidden.
func (t *Tree) SetCollapsed(i int, collapsed bool) error {
	n, err := t.Node(i)
	if err != nil {
		return err
	}
	n.Collapsed = collapsed
	for _, c := range n.Children {
		t.showSubtree(c, n.Visible && !collapsed)
	}
	return nil
}

func (t *Tree) showSubtree(i int, visible bool) {
	n := t.Nodes[i]
	n.Visible = visible
	for _, c := range n.Children {
		t.showSubtree(c, visible && !n.Collapsed)
	}
}
