package runtime

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// DecisionPolicy picks which child of a decision node provides its value.
// values[k] is the outcome vector of the k-th child.
type DecisionPolicy interface {
	Choose(m *domain.Model, n *domain.Node, values [][]float64) (int, error)
}

// PolicyFunc adapts a function to DecisionPolicy.
type PolicyFunc func(m *domain.Model, n *domain.Node, values [][]float64) (int, error)

func (f PolicyFunc) Choose(m *domain.Model, n *domain.Node, values [][]float64) (int, error) {
	return f(m, n, values)
}

// OptimizeObjective is the default policy. Expected-value models optimize
// ObjectiveDim in the direction of Objective; cost-effectiveness and
// benefit-cost models maximize net monetary benefit at the model's WTP.
// Ties keep the earliest child.
type OptimizeObjective struct{}

func (OptimizeObjective) Choose(m *domain.Model, _ *domain.Node, values [][]float64) (int, error) {
	best, bestScore := 0, 0.0
	for k, v := range values {
		score, err := objectiveScore(m.Dimensions, v)
		if err != nil {
			return 0, err
		}
		if k == 0 || score > bestScore {
			best, bestScore = k, score
		}
	}
	return best, nil
}

// objectiveScore maps an outcome vector to a value where larger is better.
func objectiveScore(d domain.Dimensions, v []float64) (float64, error) {
	switch d.AnalysisType {
	case domain.AnalysisCEA, domain.AnalysisBCA:
		cost, err := valueAt(v, d.CostDim)
		if err != nil {
			return 0, fmt.Errorf("cost dimension: %w", err)
		}
		effect, err := valueAt(v, d.EffectDim)
		if err != nil {
			return 0, fmt.Errorf("effect dimension: %w", err)
		}
		return NMB(cost, effect, d.WTP), nil
	}
	x, err := valueAt(v, d.ObjectiveDim)
	if err != nil {
		return 0, fmt.Errorf("objective dimension: %w", err)
	}
	if d.Objective == domain.Minimize {
		return -x, nil
	}
	return x, nil
}

// FirstBranch always picks the first child. It is useful when every
// strategy is compared downstream and the root value is irrelevant.
var FirstBranch = PolicyFunc(func(*domain.Model, *domain.Node, [][]float64) (int, error) { return 0, nil })
