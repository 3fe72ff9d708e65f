package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/domain"
)

// Overlay contains evaluation results to visualize on the tree.
type Overlay struct {
	// Expected maps node index to its outcome vector, as in runtime.Result.
	Expected map[int][]float64
	// Chosen marks the level-1 strategies picked by the root decision.
	Chosen map[int]bool
}

// OverlayFrom builds an overlay from a run result.
func OverlayFrom(m *domain.Model, res *runtime.Result) *Overlay {
	o := &Overlay{Expected: res.Expected, Chosen: make(map[int]bool)}
	root := m.Tree.Root()
	for k, b := range res.Branches {
		if b.Chosen && k < len(root.Children) {
			o.Chosen[root.Children[k]] = true
		}
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart of the model's tree.
// It applies semantic styling:
// - Decision: [Rectangle]
// - Chance: ((Circle))
// - Markov chain: {{Hexagon}}
// - Markov state: ([Stadium])
// - Transition: >Flag]
// Edges carry probabilities; transitions get a dotted edge to their target
// state. Collapsed subtrees are omitted.
func GenerateMermaid(m *domain.Model, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	t := m.Tree
	var walk func(i int)
	walk = func(i int) {
		n := t.Nodes[i]
		id := nodeID(i)

		opener, closer := "[", "]"
		switch n.Kind {
		case domain.KindChance:
			opener, closer = "((", "))"
		case domain.KindMarkovChain:
			opener, closer = "{{", "}}"
		case domain.KindMarkovState:
			opener, closer = "([", "])"
		case domain.KindTransition:
			opener, closer = ">", "]"
		}

		label := escape(n.Name)
		if overlay != nil {
			if v, ok := overlay.Expected[i]; ok {
				label += "<br/>" + formatVector(v)
			}
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, label, closer)

		if tr, ok := n.Payload.(*domain.Transition); ok && tr.Target != "" {
			if target := t.StateIndex(n.Chain, tr.Target); target >= 0 {
				fmt.Fprintf(&sb, "    %s -.-> %s\n", id, nodeID(target))
			}
		}
		if n.Collapsed {
			return
		}
		for _, c := range n.Children {
			edge := "-->"
			if p := t.Nodes[c].Prob; p != "" && n.Kind != domain.KindDecision && n.Kind != domain.KindMarkovChain {
				edge = fmt.Sprintf("-- \"%s\" -->", escape(p))
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", id, edge, nodeID(c))
			walk(c)
		}
	}
	walk(0)

	if overlay != nil && len(overlay.Chosen) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef chosen fill:#dcfce7,stroke:#16a34a,stroke-width:3px,color:#000;\n")
		for _, c := range t.Root().Children {
			if overlay.Chosen[c] {
				fmt.Fprintf(&sb, "    class %s chosen;\n", nodeID(c))
			}
		}
	}

	return sb.String()
}

func nodeID(i int) string {
	return fmt.Sprintf("n%d", i)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for k, x := range v {
		parts[k] = fmt.Sprintf("%.4g", x)
	}
	return strings.Join(parts, " / ")
}
