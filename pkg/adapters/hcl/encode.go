package hcl

import (
	"fmt"
	"os"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// Encode renders m in the format Decode reads. Evaluation state such as
// resolved values and expected outcomes is not written.
func Encode(m *domain.Model) ([]byte, error) {
	if m.Tree == nil || len(m.Tree.Nodes) == 0 {
		return nil, fmt.Errorf("model %s has no tree", m.Name)
	}
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	d := m.Dimensions
	body.SetAttributeValue("name", cty.StringVal(m.Name))
	body.SetAttributeValue("dimensions", stringList(d.Names))
	if len(d.Symbols) > 0 {
		body.SetAttributeValue("symbols", stringList(d.Symbols))
	}
	setString(body, "analysis", string(d.AnalysisType))
	setString(body, "objective", string(d.Objective))
	setInt(body, "objective_dim", int64(d.ObjectiveDim))
	setInt(body, "cost_dim", int64(d.CostDim))
	setInt(body, "effect_dim", int64(d.EffectDim))
	if d.WTP != 0 {
		body.SetAttributeValue("wtp", cty.NumberFloatVal(d.WTP))
	}
	setString(body, "base_strategy", d.BaseStrategy)
	if m.CohortSize > 1 {
		setInt(body, "cohort_size", int64(m.CohortSize))
	}
	setInt(body, "seed", m.Seed)
	if m.CRN {
		body.SetAttributeValue("crn", cty.True)
	}
	setInt(body, "crn_seed", m.CRNSeed)
	if len(m.ParamSets) > 0 {
		body.SetAttributeValue("param_sets", matrix(m.ParamSets))
	}

	if mk := m.Markov; mk.HalfCycleCorrection || mk.DiscountRewards || len(mk.DiscountRates) > 0 {
		body.AppendNewline()
		b := body.AppendNewBlock("markov", nil).Body()
		b.SetAttributeValue("half_cycle_correction", cty.BoolVal(mk.HalfCycleCorrection))
		b.SetAttributeValue("discount_rewards", cty.BoolVal(mk.DiscountRewards))
		if len(mk.DiscountRates) > 0 {
			b.SetAttributeValue("discount_rates", numbers(mk.DiscountRates))
		}
		setInt(b, "discount_start_cycle", int64(mk.DiscountStartCycle))
	}

	for _, p := range m.Parameters {
		body.AppendNewline()
		b := body.AppendNewBlock("parameter", []string{p.Name}).Body()
		b.SetAttributeValue("expression", cty.StringVal(p.Expression))
		setString(b, "notes", p.Notes)
		if p.Locked {
			b.SetAttributeValue("locked", cty.True)
			if v, err := p.Value.Float(); err == nil {
				b.SetAttributeValue("value", cty.NumberFloatVal(v))
			}
		}
	}
	for _, v := range m.Variables {
		body.AppendNewline()
		b := body.AppendNewBlock("variable", []string{v.Name}).Body()
		b.SetAttributeValue("expression", cty.StringVal(v.Expression))
		setString(b, "notes", v.Notes)
	}
	for _, t := range m.Tables {
		body.AppendNewline()
		b := body.AppendNewBlock("table", []string{t.Name}).Body()
		setString(b, "type", string(t.Type))
		if len(t.Headers) > 0 {
			b.SetAttributeValue("headers", stringList(t.Headers))
		}
		b.SetAttributeValue("rows", matrix(t.Data))
		setString(b, "notes", t.Notes)
	}
	for _, s := range m.Scenarios {
		body.AppendNewline()
		b := body.AppendNewBlock("scenario", []string{s.Name}).Body()
		setString(b, "updates", s.ObjectUpdates)
		setInt(b, "iterations", int64(s.NumIterations))
		setInt(b, "cohort_size", int64(s.CohortSize))
		setBool(b, "crn1", s.CRN1)
		setBool(b, "crn2", s.CRN2)
		setInt(b, "seed1", s.Seed1)
		setInt(b, "seed2", s.Seed2)
		setBool(b, "sample_params", s.SampleParams)
		setBool(b, "use_param_sets", s.UseParamSets)
		b.SetAttributeValue("wtp", cty.NumberFloatVal(s.WTP))
		b.SetAttributeValue("half_cycle_correction", cty.BoolVal(s.HalfCycleCorrection))
		setString(b, "notes", s.Notes)
	}

	body.AppendNewline()
	if err := writeNode(body, m.Tree, 0); err != nil {
		return nil, err
	}
	return f.Bytes(), nil
}

// WriteFile encodes m to path.
func WriteFile(path string, m *domain.Model) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	return nil
}

func writeNode(parent *hclwrite.Body, t *domain.Tree, i int) error {
	n := t.Nodes[i]
	b := parent.AppendNewBlock("node", []string{n.Kind.String(), n.Name}).Body()
	switch {
	case n.Prob == domain.Complement:
		b.SetAttributeTraversal("prob", hcl.Traversal{hcl.TraverseRoot{Name: "complement"}})
	case n.Prob != "":
		b.SetAttributeValue("prob", cty.StringVal(n.Prob))
	}

	switch p := n.Payload.(type) {
	case *domain.Decision:
		setVector(b, "cost", p.Cost)
	case *domain.Chance:
		setVector(b, "cost", p.Cost)
		setString(b, "var_updates", p.VarUpdates)
	case *domain.MarkovChain:
		setVector(b, "cost", p.Cost)
		setString(b, "termination", p.Termination)
		setString(b, "var_updates", p.VarUpdates)
		setString(b, "var_updates_t0", p.VarUpdatesT0)
	case *domain.MarkovState:
		setVector(b, "rewards", p.Rewards)
		setString(b, "var_updates", p.VarUpdates)
	case *domain.Transition:
		setVector(b, "cost", p.Cost)
		setString(b, "target", p.Target)
	default:
		return fmt.Errorf("node %s: unsupported payload %T", n.Name, n.Payload)
	}
	setString(b, "notes", n.Notes)
	setBool(b, "collapsed", n.Collapsed)

	for _, c := range n.Children {
		if err := writeNode(b, t, c); err != nil {
			return err
		}
	}
	return nil
}

// setVector skips vectors that are all "0".
func setVector(b *hclwrite.Body, name string, v []string) {
	for _, s := range v {
		if s != "0" && s != "" {
			b.SetAttributeValue(name, stringList(v))
			return
		}
	}
}

func setString(b *hclwrite.Body, name, v string) {
	if v != "" {
		b.SetAttributeValue(name, cty.StringVal(v))
	}
}

func setInt(b *hclwrite.Body, name string, v int64) {
	if v != 0 {
		b.SetAttributeValue(name, cty.NumberIntVal(v))
	}
}

func setBool(b *hclwrite.Body, name string, v bool) {
	if v {
		b.SetAttributeValue(name, cty.True)
	}
}

func stringList(ss []string) cty.Value {
	if len(ss) == 0 {
		return cty.ListValEmpty(cty.String)
	}
	vals := make([]cty.Value, len(ss))
	for i, s := range ss {
		vals[i] = cty.StringVal(s)
	}
	return cty.ListVal(vals)
}

func numbers(fs []float64) cty.Value {
	if len(fs) == 0 {
		return cty.ListValEmpty(cty.Number)
	}
	vals := make([]cty.Value, len(fs))
	for i, f := range fs {
		vals[i] = cty.NumberFloatVal(f)
	}
	return cty.ListVal(vals)
}

func matrix(rows [][]float64) cty.Value {
	if len(rows) == 0 {
		return cty.ListValEmpty(cty.List(cty.Number))
	}
	vals := make([]cty.Value, len(rows))
	for i, r := range rows {
		vals[i] = numbers(r)
	}
	return cty.TupleVal(vals)
}
