package runtime

import (
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Interval is the distribution of one outcome across iterations.
type Interval struct {
	Mean  float64 `json:"mean"`
	SD    float64 `json:"sd"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// BranchSummary aggregates one strategy over a PSA.
type BranchSummary struct {
	Name string `json:"name"`
	// Dims has one interval per outcome dimension.
	Dims []Interval `json:"dims"`
	// Wins counts the iterations in which the strategy was chosen.
	Wins int `json:"wins"`
}

// Summarize reduces PSA iterations to mean, standard deviation and the
// 2.5/97.5 percentiles per branch and dimension.
func Summarize(its []IterationResult) []BranchSummary {
	if len(its) == 0 {
		return nil
	}
	first := its[0].Branches
	out := make([]BranchSummary, len(first))
	for k, b := range first {
		out[k] = BranchSummary{Name: b.Name, Dims: make([]Interval, len(b.Values))}
		for d := range b.Values {
			xs := make([]float64, 0, len(its))
			for _, it := range its {
				if k < len(it.Branches) && d < len(it.Branches[k].Values) {
					xs = append(xs, it.Branches[k].Values[d])
				}
			}
			out[k].Dims[d] = interval(xs)
		}
		for _, it := range its {
			if k < len(it.Branches) && it.Branches[k].Chosen {
				out[k].Wins++
			}
		}
	}
	return out
}

func interval(xs []float64) Interval {
	if len(xs) == 0 {
		return Interval{}
	}
	slices.Sort(xs)
	mean, sd := stat.MeanStdDev(xs, nil)
	if len(xs) < 2 {
		sd = 0
	}
	return Interval{
		Mean:  mean,
		SD:    sd,
		Lower: stat.Quantile(0.025, stat.Empirical, xs, nil),
		Upper: stat.Quantile(0.975, stat.Empirical, xs, nil),
	}
}
