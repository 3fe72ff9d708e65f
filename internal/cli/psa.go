package cli

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/adapters/sqlite"
)

// PSAOptions configures the psa command.
type PSAOptions struct {
	Options
	Model      string
	Iterations int
	Seed       int64
	CRN        bool
	Workers    int
	// Results is a SQLite DSN. When set, the iterations replace any stored
	// for the model.
	Results string
}

// RunPSA runs a probabilistic sensitivity analysis and prints its summary.
func RunPSA(ctx context.Context, opts PSAOptions) error {
	if opts.Iterations < 1 {
		return fmt.Errorf("iterations must be at least 1, got %d", opts.Iterations)
	}
	logger, err := createLogger(opts.LogLevel)
	if err != nil {
		return err
	}

	var extra []arbor.Option
	var results *sqlite.Store
	if opts.Results != "" {
		results, err = sqlite.Open(opts.Results)
		if err != nil {
			return err
		}
		defer results.Close()
		extra = append(extra, arbor.WithResults(results))
	}

	eng, err := createEngine(opts.Options, logger, extra...)
	if err != nil {
		return err
	}
	m, err := resolveModel(ctx, eng, opts.Dir, opts.Model)
	if err != nil {
		return err
	}
	if report := eng.Validate(m); !report.Checked() {
		return writeValidation(opts.Options, m, report)
	}

	if results != nil {
		if err := results.Clear(ctx, m.Name); err != nil {
			return err
		}
	}

	its, err := eng.RunPSA(ctx, m, runtime.Settings{
		Iterations:   opts.Iterations,
		CRN1:         opts.CRN,
		Seed1:        opts.Seed,
		CRN2:         opts.CRN,
		Seed2:        opts.Seed,
		SampleParams: true,
		Workers:      opts.Workers,
	})
	if err != nil {
		return handleExecutionError(fmt.Errorf("psa %s: %w", m.Name, err))
	}
	logger.Info("PSA finished", "model", m.Name, "iterations", len(its))
	return writePSA(opts.Options, m, its)
}
