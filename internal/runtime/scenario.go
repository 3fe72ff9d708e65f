package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// ScenarioResult is the outcome of running a model under one scenario.
type ScenarioResult struct {
	Scenario string `json:"scenario"`
	// Result is set for single-iteration scenarios.
	Result *Result `json:"result,omitempty"`
	// Iterations and Summary are set for PSA scenarios.
	Iterations []IterationResult `json:"iterations,omitempty"`
	Summary    []BranchSummary   `json:"summary,omitempty"`
}

// RunScenario evaluates a clone of m with the scenario's settings and
// overrides applied. Neither m nor sc is modified. A scenario with more than one iteration runs a PSA.
func (e *Engine) RunScenario(ctx context.Context, m *domain.Model, sc *domain.Scenario, opts ...func(*Settings)) (*ScenarioResult, error) {
	c := m.Clone()
	sc = sc.Copy()
	sc.ApplySettings(c)

	// 1. Overrides
	if err := sc.Parse(c); err != nil {
		return nil, err
	}
	if err := sc.ApplyUpdates(c); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	if sc.SampleParams {
		if err := sc.OverwriteParams(c); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
	}

	e.logger.Info("Scenario started", "model", m.Name, "scenario", sc.Name, "iterations", sc.NumIterations)

	// 2. Run
	out := &ScenarioResult{Scenario: sc.Name}
	if sc.NumIterations <= 1 {
		res, err := e.Run(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		out.Result = res
		return out, nil
	}
	settings := SettingsFrom(sc)
	for _, opt := range opts {
		opt(&settings)
	}
	its, err := e.RunPSA(ctx, c, settings)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	out.Iterations = its
	out.Summary = Summarize(its)
	return out, nil
}
