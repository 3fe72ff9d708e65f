package runtime

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/aretw0/arbor/pkg/domain"
)

// ICER is one strategy's row in a cost-effectiveness table.
type ICER struct {
	Name   string  `json:"name"`
	Cost   float64 `json:"cost"`
	Effect float64 `json:"effect"`
	// IncCost and IncEffect are relative to the comparator.
	IncCost   float64 `json:"inc_cost"`
	IncEffect float64 `json:"inc_effect"`
	// Ratio is IncCost/IncEffect; Undefined is set when IncEffect is zero.
	Ratio     float64 `json:"icer"`
	Undefined bool    `json:"icer_undefined,omitempty"`
	// FrontierRatio is the ICER against the previous strategy on the
	// efficient frontier. It is zero off the frontier.
	FrontierRatio     float64 `json:"frontier_icer"`
	NMB               float64 `json:"nmb"`
	Comparator        bool    `json:"comparator,omitempty"`
	Dominated         bool    `json:"dominated,omitempty"`
	ExtendedDominated bool    `json:"extended_dominated,omitempty"`
}

// NMB is the net monetary benefit effect·wtp − cost.
func NMB(cost, effect, wtp float64) float64 {
	return effect*wtp - cost
}

// ComputeICER builds the cost-effectiveness table for the given branches.
// The comparator is the branch with that name, or the cheapest branch when
// the name is empty or unknown. Rows keep the order of branches. A
// dimension index outside a branch's values is an error.
func ComputeICER(branches []Branch, costDim, effectDim int, comparator string, wtp float64) ([]ICER, error) {
	rows := make([]ICER, len(branches))
	base := -1
	for k, b := range branches {
		cost, err := valueAt(b.Values, costDim)
		if err != nil {
			return nil, fmt.Errorf("%s: cost dimension: %w", b.Name, err)
		}
		effect, err := valueAt(b.Values, effectDim)
		if err != nil {
			return nil, fmt.Errorf("%s: effect dimension: %w", b.Name, err)
		}
		rows[k] = ICER{Name: b.Name, Cost: cost, Effect: effect}
		rows[k].NMB = NMB(rows[k].Cost, rows[k].Effect, wtp)
		if comparator != "" && b.Name == comparator && base < 0 {
			base = k
		}
	}
	if len(rows) == 0 {
		return rows, nil
	}
	if base < 0 {
		base = 0
		for k := range rows {
			if rows[k].Cost < rows[base].Cost {
				base = k
			}
		}
	}

	// 1. Increments against the comparator
	rows[base].Comparator = true
	for k := range rows {
		rows[k].IncCost = rows[k].Cost - rows[base].Cost
		rows[k].IncEffect = rows[k].Effect - rows[base].Effect
		if k == base || rows[k].IncEffect == 0 {
			rows[k].Undefined = true
			continue
		}
		rows[k].Ratio = rows[k].IncCost / rows[k].IncEffect
	}

	// 2. Strong dominance: costs at least as much for no more effect
	for k := range rows {
		for j := range rows {
			if j == k {
				continue
			}
			a, b := rows[j], rows[k]
			if a.Cost <= b.Cost && a.Effect >= b.Effect && (a.Cost < b.Cost || a.Effect > b.Effect) {
				rows[k].Dominated = true
				break
			}
		}
	}

	// 3. Extended dominance on the remaining frontier
	frontier := make([]int, 0, len(rows))
	for k := range rows {
		if !rows[k].Dominated {
			frontier = append(frontier, k)
		}
	}
	slices.SortStableFunc(frontier, func(a, b int) int {
		return cmp.Or(cmp.Compare(rows[a].Cost, rows[b].Cost), cmp.Compare(rows[b].Effect, rows[a].Effect))
	})
	for removed := true; removed; {
		removed = false
		for p := 1; p+1 < len(frontier); p++ {
			prev, cur, next := rows[frontier[p-1]], rows[frontier[p]], rows[frontier[p+1]]
			if slope(prev, cur) > slope(cur, next) {
				rows[frontier[p]].ExtendedDominated = true
				frontier = slices.Delete(frontier, p, p+1)
				removed = true
				break
			}
		}
	}
	for p := 1; p < len(frontier); p++ {
		rows[frontier[p]].FrontierRatio = slope(rows[frontier[p-1]], rows[frontier[p]])
	}
	return rows, nil
}

// CEA computes the cost-effectiveness table for a result using the
// model's dimension settings.
func (r *Result) CEA(d domain.Dimensions) ([]ICER, error) {
	return ComputeICER(r.Branches, d.CostDim, d.EffectDim, d.BaseStrategy, d.WTP)
}

func slope(a, b ICER) float64 {
	de := b.Effect - a.Effect
	if de == 0 {
		return 0
	}
	return (b.Cost - a.Cost) / de
}

func valueAt(v []float64, i int) (float64, error) {
	if i < 0 || i >= len(v) {
		return 0, fmt.Errorf("index %d outside %d dimensions: %w", i, len(v), domain.ErrDimensionOutOfRange)
	}
	return v[i], nil
}
