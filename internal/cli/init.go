package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
)

// SampleModel is the name of the model written by Init.
const SampleModel = "cohort"

// sampleModel is a two-strategy Markov cohort comparing standard care with
// a drug that lowers the chance of falling sick.
func sampleModel() (*domain.Model, error) {
	b := dsl.New(SampleModel, "Cost", "QALY").
		CEA(0, 1, 50000).
		Param("pSick", "Beta(20, 180)").
		Param("pDie", "0.01").
		Param("rrDrug", "Uniform(0.5, 0.8)").
		Param("cDrug", "1200").
		Param("cSick", "4000").
		Param("uSick", "Beta(60, 40)").
		Markov(domain.MarkovSettings{
			HalfCycleCorrection: true,
			DiscountRewards:     true,
			DiscountRates:       []float64{0.03, 0.03},
		}).
		Scenario("psa", 1000, "")
	b.Root().Notes("Annual cycles over 40 years.")

	for _, strategy := range []struct {
		name, drugCost, sickProb string
	}{
		{"Standard care", "0", "pSick"},
		{"New drug", "cDrug", "pSick * rrDrug"},
	} {
		chain := b.Root().Markov(strategy.name).Termination("t >= 40")

		healthy := chain.State("Healthy").Prob("1").Rewards(strategy.drugCost, "1")
		healthy.To("Sick", strategy.sickProb)
		healthy.To("Dead", "pDie")
		healthy.To("Healthy", dsl.Complement)

		sick := chain.State("Sick").Prob("0").Rewards("cSick", "uSick")
		sick.To("Dead", "3 * pDie")
		sick.To("Sick", dsl.Complement)

		chain.State("Dead").Prob("0").Rewards("0", "0").To("Dead", "1")
	}

	m, err := b.Build()
	if err != nil {
		return nil, err
	}
	m.Scenario("psa").SampleParams = true
	return m, nil
}

// Init scaffolds a workspace in dir with a sample model and a library
// scenario, then validates it.
func Init(ctx context.Context, w io.Writer, dir string) error {
	m, err := sampleModel()
	if err != nil {
		return err
	}

	eng, err := arbor.New(dir, arbor.WithWritableLibrary())
	if err != nil {
		return err
	}
	if report := eng.Validate(m); !report.Checked() {
		return fmt.Errorf("sample model is invalid: %w", report.Err())
	}
	if err := eng.Save(ctx, m); err != nil {
		return fmt.Errorf("failed to write sample model: %w", err)
	}

	sc := domain.NewScenario(m)
	sc.Name = "cheap drug"
	sc.NumIterations = 1
	sc.ObjectUpdates = "cDrug = 600"
	if err := eng.SaveScenario(ctx, m.Name, sc); err != nil {
		return fmt.Errorf("failed to write sample scenario: %w", err)
	}

	printSystemMessage(w, "Created %s", filepath.Join(dir, "models", m.Name+string(file.FormatJSON)))
	printSystemMessage(w, "Try: arbor run --dir %s %s", dir, m.Name)
	return nil
}
