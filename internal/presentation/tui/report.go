package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/internal/validator"
	"github.com/aretw0/arbor/pkg/domain"
)

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func header(sb *strings.Builder, cols ...string) {
	sb.WriteString("| " + strings.Join(cols, " | ") + " |\n")
	sb.WriteString("|" + strings.Repeat(" --- |", len(cols)) + "\n")
}

func row(sb *strings.Builder, cells ...string) {
	sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
}

func dimLabel(d domain.Dimensions, i int) string {
	name := d.Names[i]
	if i < len(d.Symbols) && d.Symbols[i] != "" {
		name += " (" + d.Symbols[i] + ")"
	}
	return name
}

// ResultReport renders an expected-value run. icers may be nil.
func ResultReport(m *domain.Model, res *runtime.Result, icers []runtime.ICER) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", m.Name)

	cols := []string{"Strategy"}
	for i := range m.Dimensions.Names {
		cols = append(cols, dimLabel(m.Dimensions, i))
	}
	header(&sb, append(cols, "")...)
	for _, b := range res.Branches {
		cells := []string{b.Name}
		for _, v := range b.Values {
			cells = append(cells, num(v))
		}
		mark := ""
		if b.Chosen {
			mark = "**chosen**"
		}
		row(&sb, append(cells, mark)...)
	}

	if len(icers) > 0 {
		fmt.Fprintf(&sb, "\n## Cost-effectiveness (WTP %s)\n\n", num(m.Dimensions.WTP))
		header(&sb, "Strategy", "Cost", "Effect", "Inc. cost", "Inc. effect", "ICER", "NMB", "")
		for _, r := range icers {
			ratio := num(r.Ratio)
			if r.Undefined {
				ratio = "-"
			}
			var notes []string
			switch {
			case r.Comparator:
				notes = append(notes, "comparator")
			case r.Dominated:
				notes = append(notes, "dominated")
			case r.ExtendedDominated:
				notes = append(notes, "extended dominance")
			}
			row(&sb, r.Name, num(r.Cost), num(r.Effect), num(r.IncCost), num(r.IncEffect), ratio, num(r.NMB), strings.Join(notes, ", "))
		}
	}

	if len(res.Chains) > 0 {
		sb.WriteString("\n## Markov chains\n\n")
		header(&sb, "Chain", "States", "Cycles", "Cohort")
		for _, i := range m.Tree.Chains() {
			if tr, ok := res.Chains[i]; ok {
				row(&sb, tr.Chain, strings.Join(tr.States, ", "), strconv.Itoa(tr.Cycles), strconv.Itoa(tr.Cohort))
			}
		}
	}
	return sb.String()
}

// PSAReport renders a PSA summary with 95% intervals.
func PSAReport(m *domain.Model, iterations int, summary []runtime.BranchSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s: %d iterations\n\n", m.Name, iterations)
	header(&sb, "Strategy", "Dimension", "Mean", "SD", "95% interval", "Chosen")
	for _, s := range summary {
		for d, iv := range s.Dims {
			name, chosen := "", ""
			if d == 0 {
				name = s.Name
				chosen = fmt.Sprintf("%d%%", s.Wins*100/max(iterations, 1))
			}
			label := strconv.Itoa(d)
			if d < m.Dimensions.Count() {
				label = dimLabel(m.Dimensions, d)
			}
			row(&sb, name, label, num(iv.Mean), num(iv.SD), fmt.Sprintf("%s to %s", num(iv.Lower), num(iv.Upper)), chosen)
		}
	}
	return sb.String()
}

// ValidationReport renders validator findings.
func ValidationReport(name string, r *validator.Report) string {
	var sb strings.Builder
	if r.Checked() {
		fmt.Fprintf(&sb, "# %s\n\nNo problems found.\n", name)
		return sb.String()
	}
	fmt.Fprintf(&sb, "# %s: %d problems\n\n", name, len(r.Errors))
	header(&sb, "Node", "Index", "Problem")
	for _, e := range r.Errors {
		row(&sb, e.Node, strconv.Itoa(e.Index), strings.ReplaceAll(e.Message, "|", "\\|"))
	}
	return sb.String()
}

// ScenarioReport lists scenarios with their key settings.
func ScenarioReport(model string, list []*domain.Scenario) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s scenarios\n\n", model)
	if len(list) == 0 {
		sb.WriteString("None defined.\n")
		return sb.String()
	}
	header(&sb, "Name", "Iterations", "Analysis", "Overrides")
	for _, s := range list {
		updates := s.ObjectUpdates
		if updates == "" {
			updates = "base case"
		}
		row(&sb, s.Name, strconv.Itoa(s.NumIterations), string(s.AnalysisType), "`"+updates+"`")
	}
	return sb.String()
}
