package runtime

import (
	"fmt"
	"math"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/expr"
)

// ChainTrace records a cohort rollout cycle by cycle.
type ChainTrace struct {
	Chain  string   `json:"chain"`
	States []string `json:"states"`
	// Occupancy holds the state fractions at the start of each cycle,
	// followed by the final distribution.
	Occupancy [][]float64 `json:"occupancy"`
	// Rewards holds each cycle's weighted, discounted contribution.
	Rewards [][]float64 `json:"rewards"`
	Cycles  int         `json:"cycles"`
	Cohort  int         `json:"cohort"`
}

// Counts scales the occupancy at cycle c by the cohort size.
func (t *ChainTrace) Counts(c int) []float64 {
	if c < 0 || c >= len(t.Occupancy) {
		return nil
	}
	return scale(t.Occupancy[c], float64(t.Cohort))
}

// rollout runs the cohort simulation for the chain at index i and returns
// its accumulated per-person outcome, excluding the chain's own cost.
func (w *walker) rollout(i int) ([]float64, error) {
	n := w.m.Tree.Nodes[i]
	mc := n.Payload.(*domain.MarkovChain)
	dims := w.m.Dimensions.Count()

	// 1. Resolve states and initial occupancy
	states := make([]int, len(mc.StateNames))
	for k, name := range mc.StateNames {
		s := w.m.Tree.StateIndex(i, name)
		if s < 0 {
			return nil, w.fail(i, &expr.UndefinedReferenceError{Name: name, Kind: "state"})
		}
		states[k] = s
	}
	if err := w.m.InitVariables(w.finalize); err != nil {
		return nil, w.fail(i, err)
	}
	ev := w.evaluator(map[string]float64{"t": 0, "cycle": 0})
	occ, err := w.branchProbs(ev, states)
	if err != nil {
		return nil, err
	}

	trace := &ChainTrace{
		Chain:  n.Name,
		States: mc.StateNames,
		Cohort: max(w.m.CohortSize, 1),
	}
	total := make([]float64, dims)
	var lastReward []float64

	// 2. Cycle until termination
	for c := 0; ; c++ {
		if c >= w.engine.maxCycles {
			return nil, w.fail(i, &domain.IterationLimitExceeded{Chain: n.Name, Limit: w.engine.maxCycles})
		}
		if err := w.ctx.Err(); err != nil {
			return nil, err
		}
		ev := w.evaluator(map[string]float64{"t": float64(c), "cycle": float64(c)})
		disc := w.discount(c)

		matrix, flowCost, err := w.transitions(ev, i, states, occ)
		if err != nil {
			return nil, err
		}

		updates := mc.VarUpdates
		if c == 0 {
			updates = mc.VarUpdatesT0
		}
		if err := w.applyVarUpdates(ev, updates); err != nil {
			return nil, w.fail(i, err)
		}
		for _, s := range states {
			if err := w.applyVarUpdates(ev, w.m.Tree.Nodes[s].VarUpdates()); err != nil {
				return nil, w.fail(s, err)
			}
		}

		reward := make([]float64, dims)
		for k, s := range states {
			r, err := w.vector(ev, w.m.Tree.Nodes[s].Payload.(*domain.MarkovState).Rewards)
			if err != nil {
				return nil, w.fail(s, fmt.Errorf("reward: %w", err))
			}
			for d := range reward {
				reward[d] += occ[k] * r[d] * disc[d]
			}
		}
		weight := 1.0
		if c == 0 && w.m.Markov.HalfCycleCorrection {
			weight = 0.5
		}
		contribution := make([]float64, dims)
		for d := range contribution {
			contribution[d] = weight*reward[d] + flowCost[d]*disc[d]
			total[d] += contribution[d]
		}
		trace.Occupancy = append(trace.Occupancy, occ)
		trace.Rewards = append(trace.Rewards, contribution)
		lastReward = reward

		occ = advance(occ, matrix)

		if w.engine.hooks.OnCycle != nil {
			w.engine.hooks.OnCycle(w.ctx, &domain.CycleEvent{
				EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventCycle, Model: w.m.Name},
				Chain:     n.Name,
				Cycle:     c,
				Occupancy: occ,
				Rewards:   contribution,
			})
		}

		done, err := ev.Truth(mc.Termination)
		if err != nil {
			return nil, w.fail(i, fmt.Errorf("termination: %w", err))
		}
		if done {
			trace.Cycles = c + 1
			break
		}
	}
	trace.Occupancy = append(trace.Occupancy, occ)

	// 3. Retroactive half-cycle correction of the last cycle
	if w.m.Markov.HalfCycleCorrection && trace.Cycles > 1 {
		last := trace.Rewards[len(trace.Rewards)-1]
		for d := range total {
			total[d] -= 0.5 * lastReward[d]
			last[d] -= 0.5 * lastReward[d]
		}
	}

	if w.res.Chains == nil {
		w.res.Chains = make(map[int]*ChainTrace)
	}
	w.res.Chains[i] = trace
	w.engine.logger.Debug("Chain finished", "model", w.m.Name, "node", n.Name, "cycle", trace.Cycles)
	return total, nil
}

// discount returns the per-dimension multiplier for cycle c.
func (w *walker) discount(c int) []float64 {
	mk := w.m.Markov
	out := make([]float64, w.m.Dimensions.Count())
	for d := range out {
		out[d] = 1
		if !mk.DiscountRewards || c < mk.DiscountStartCycle || d >= len(mk.DiscountRates) {
			continue
		}
		out[d] = 1 / math.Pow(1+mk.DiscountRates[d], float64(c-mk.DiscountStartCycle))
	}
	return out
}

// transitions builds the cycle's row-per-state matrix by walking each
// state's subtree. Costs on the way accrue weighted by the flowing mass.
func (w *walker) transitions(ev *expr.Evaluator, chain int, states []int, occ []float64) ([][]float64, []float64, error) {
	matrix := make([][]float64, len(states))
	cost := make([]float64, w.m.Dimensions.Count())
	for k, s := range states {
		matrix[k] = make([]float64, len(states))
		if err := w.flow(ev, chain, s, 1, occ[k], matrix[k], cost); err != nil {
			return nil, nil, err
		}
	}
	return matrix, cost, nil
}

func (w *walker) flow(ev *expr.Evaluator, chain, i int, mass, occ float64, row, cost []float64) error {
	n := w.m.Tree.Nodes[i]
	probs, err := w.branchProbs(ev, n.Children)
	if err != nil {
		return err
	}
	for pos, c := range n.Children {
		child := w.m.Tree.Nodes[c]
		share := mass * probs[pos]

		own, err := w.vector(ev, child.Cost())
		if err != nil {
			return w.fail(c, fmt.Errorf("cost: %w", err))
		}
		for d := range cost {
			cost[d] += occ * share * own[d]
		}

		switch p := child.Payload.(type) {
		case *domain.Chance:
			if err := w.applyVarUpdates(ev, p.VarUpdates); err != nil {
				return w.fail(c, err)
			}
			if err := w.flow(ev, chain, c, share, occ, row, cost); err != nil {
				return err
			}
		case *domain.Transition:
			k := w.stateSlot(chain, p.Target)
			if k < 0 {
				return w.fail(c, &expr.UndefinedReferenceError{Name: p.Target, Kind: "state"})
			}
			row[k] += share
		default:
			return w.fail(c, fmt.Errorf("%s below a markov state: %w", child.Kind, domain.ErrInvalidPlacement))
		}
	}
	return nil
}

// stateSlot maps a state name to its position in the chain's StateNames.
func (w *walker) stateSlot(chain int, name string) int {
	mc := w.m.Tree.Nodes[chain].Payload.(*domain.MarkovChain)
	for k, s := range mc.StateNames {
		if s == name {
			return k
		}
	}
	return -1
}

func advance(occ []float64, matrix [][]float64) []float64 {
	next := make([]float64, len(occ))
	for k, row := range matrix {
		for j, p := range row {
			next[j] += occ[k] * p
		}
	}
	return next
}
