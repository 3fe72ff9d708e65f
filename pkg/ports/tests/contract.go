package tests

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// ScenarioLibraryContractTest is a reusable test suite that verifies if an adapter complies with ports.ScenarioLibrary.
// setup maps scenario names already present under model to their override text.
func ScenarioLibraryContractTest(t *testing.T, lib ports.ScenarioLibrary, model string, setup map[string]string) {
	t.Helper()
	ctx := context.Background()

	// 1. Test Scenarios (Success)
	t.Run("Scenarios_Success", func(t *testing.T) {
		scenarios, err := lib.Scenarios(ctx, model)
		if err != nil {
			t.Fatalf("unexpected error listing scenarios: %v", err)
		}
		if len(scenarios) != len(setup) {
			t.Fatalf("expected %d scenarios, got %d", len(setup), len(scenarios))
		}
		for _, sc := range scenarios {
			want, ok := setup[sc.Name]
			if !ok {
				t.Errorf("unexpected scenario %s", sc.Name)
				continue
			}
			if sc.ObjectUpdates != want {
				t.Errorf("updates mismatch for %s. got %q, want %q", sc.Name, sc.ObjectUpdates, want)
			}
		}
	})

	// 2. Test Scenarios (Other model)
	t.Run("Scenarios_OtherModel", func(t *testing.T) {
		scenarios, err := lib.Scenarios(ctx, "non-existent-model")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(scenarios) != 0 {
			t.Errorf("expected no scenarios, got %d", len(scenarios))
		}
	})

	// 3. Test SaveScenario round trip
	t.Run("SaveScenario", func(t *testing.T) {
		sc := &domain.Scenario{
			Name:          "contract-saved",
			NumIterations: 250,
			CRN1:          true,
			Seed1:         99,
			WTP:           50000,
			ObjectUpdates: "pCure = 0.9",
		}
		if err := lib.SaveScenario(ctx, model, sc); err != nil {
			t.Fatalf("unexpected error saving scenario: %v", err)
		}
		scenarios, err := lib.Scenarios(ctx, model)
		if err != nil {
			t.Fatalf("unexpected error listing scenarios: %v", err)
		}
		var got *domain.Scenario
		for _, s := range scenarios {
			if s.Name == sc.Name {
				got = s
			}
		}
		if got == nil {
			t.Fatalf("saved scenario %s missing from list", sc.Name)
		}
		if got.NumIterations != 250 || !got.CRN1 || got.Seed1 != 99 || got.WTP != 50000 {
			t.Errorf("settings not preserved: %+v", got)
		}
		if got.ObjectUpdates != sc.ObjectUpdates {
			t.Errorf("updates mismatch. got %q, want %q", got.ObjectUpdates, sc.ObjectUpdates)
		}
	})
}
