package dsl

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// NodeBuilder provides a fluent API for configuring a node and adding
// children below it.
type NodeBuilder struct {
	builder *Builder
	index   int
}

// Index returns the node's position in the tree.
func (n *NodeBuilder) Index() int { return n.index }

func (n *NodeBuilder) node() *domain.Node {
	return n.builder.model.Tree.Nodes[n.index]
}

func (n *NodeBuilder) fail(format string, args ...any) *NodeBuilder {
	n.builder.fail(fmt.Errorf("node %s: %s", n.node().Name, fmt.Sprintf(format, args...)))
	return n
}

func (n *NodeBuilder) add(kind domain.Kind, name string) *NodeBuilder {
	tree := n.builder.model.Tree
	i, err := tree.AddChild(n.index, kind)
	if err != nil {
		n.fail("add %s %q: %v", kind, name, err)
		// Keep chaining on the parent so later calls do not panic.
		return n
	}
	if name != "" {
		if err := tree.Rename(i, name); err != nil {
			n.builder.fail(fmt.Errorf("rename %q: %w", name, err))
		}
	}
	return &NodeBuilder{builder: n.builder, index: i}
}

// Decision adds a decision child.
func (n *NodeBuilder) Decision(name string) *NodeBuilder {
	return n.add(domain.KindDecision, name)
}

// Chance adds a chance child.
func (n *NodeBuilder) Chance(name string) *NodeBuilder {
	return n.add(domain.KindChance, name)
}

// Markov adds a Markov chain child.
func (n *NodeBuilder) Markov(name string) *NodeBuilder {
	return n.add(domain.KindMarkovChain, name)
}

// State adds a Markov state to a chain.
func (n *NodeBuilder) State(name string) *NodeBuilder {
	return n.add(domain.KindMarkovState, name)
}

// To adds a transition from a state (or a chance node inside one) to the
// named state with probability prob.
func (n *NodeBuilder) To(target, prob string) *NodeBuilder {
	t := n.add(domain.KindTransition, "to "+target)
	if t == n {
		return n
	}
	t.node().Payload.(*domain.Transition).Target = target
	t.node().Prob = prob
	return t
}

// Prob sets the branch probability.
func (n *NodeBuilder) Prob(expression string) *NodeBuilder {
	n.node().Prob = expression
	return n
}

// Cost sets the cost vector, one expression per dimension.
func (n *NodeBuilder) Cost(values ...string) *NodeBuilder {
	vec, err := n.vector(values)
	if err != nil {
		return n.fail("cost: %v", err)
	}
	switch p := n.node().Payload.(type) {
	case *domain.Decision:
		p.Cost = vec
	case *domain.Chance:
		p.Cost = vec
	case *domain.MarkovChain:
		p.Cost = vec
	case *domain.Transition:
		p.Cost = vec
	default:
		return n.fail("%s nodes have no cost", n.node().Kind)
	}
	return n
}

// Rewards sets a state's per-cycle rewards.
func (n *NodeBuilder) Rewards(values ...string) *NodeBuilder {
	p, ok := n.node().Payload.(*domain.MarkovState)
	if !ok {
		return n.fail("%s nodes have no rewards", n.node().Kind)
	}
	vec, err := n.vector(values)
	if err != nil {
		return n.fail("rewards: %v", err)
	}
	p.Rewards = vec
	return n
}

// Termination sets a chain's stopping condition.
func (n *NodeBuilder) Termination(condition string) *NodeBuilder {
	p, ok := n.node().Payload.(*domain.MarkovChain)
	if !ok {
		return n.fail("%s nodes have no termination", n.node().Kind)
	}
	p.Termination = condition
	return n
}

// Updates sets the variable updates run when the node is visited.
func (n *NodeBuilder) Updates(text string) *NodeBuilder {
	switch p := n.node().Payload.(type) {
	case *domain.Chance:
		p.VarUpdates = text
	case *domain.MarkovChain:
		p.VarUpdates = text
	case *domain.MarkovState:
		p.VarUpdates = text
	default:
		return n.fail("%s nodes have no variable updates", n.node().Kind)
	}
	return n
}

// InitialUpdates sets the updates a chain runs once before cycle 0.
func (n *NodeBuilder) InitialUpdates(text string) *NodeBuilder {
	p, ok := n.node().Payload.(*domain.MarkovChain)
	if !ok {
		return n.fail("%s nodes have no initial updates", n.node().Kind)
	}
	p.VarUpdatesT0 = text
	return n
}

// Notes attaches free text.
func (n *NodeBuilder) Notes(text string) *NodeBuilder {
	n.node().Notes = text
	return n
}

// Collapsed hides the node's subtree in displays.
func (n *NodeBuilder) Collapsed() *NodeBuilder {
	if err := n.builder.model.Tree.SetCollapsed(n.index, true); err != nil {
		return n.fail("collapse: %v", err)
	}
	return n
}

// vector pads values with "0" to the model's dimension count.
func (n *NodeBuilder) vector(values []string) ([]string, error) {
	dims := n.builder.model.Dimensions.Count()
	if len(values) > dims {
		return nil, fmt.Errorf("%d values for %d dimensions", len(values), dims)
	}
	vec := make([]string, dims)
	for i := range vec {
		vec[i] = "0"
		if i < len(values) {
			vec[i] = values[i]
		}
	}
	return vec, nil
}
