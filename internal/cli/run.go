package cli

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor"
)

// RunOptions contains all the configuration for the Run command.
type RunOptions struct {
	Options
	Model    string
	Scenario string
	Watch    bool
}

// Execute handles the 'run' command logic, dispatching to watch mode when asked.
func Execute(ctx context.Context, opts RunOptions) error {
	logger, err := createLogger(opts.LogLevel)
	if err != nil {
		return err
	}
	eng, err := createEngine(opts.Options, logger)
	if err != nil {
		return err
	}

	if opts.Watch {
		return handleExecutionError(RunWatch(ctx, eng, opts, logger))
	}
	return runOnce(ctx, eng, opts)
}

// runOnce validates and evaluates the model, or the selected scenario, and
// prints the result.
func runOnce(ctx context.Context, eng *arbor.Engine, opts RunOptions) error {
	m, err := resolveModel(ctx, eng, opts.Dir, opts.Model)
	if err != nil {
		return err
	}
	if report := eng.Validate(m); !report.Checked() {
		return writeValidation(opts.Options, m, report)
	}

	if opts.Scenario == "" {
		res, err := eng.Run(ctx, m)
		if err != nil {
			return fmt.Errorf("run %s: %w", m.Name, err)
		}
		return writeResult(opts.Options, m, res)
	}

	sc, err := eng.Scenario(ctx, m, opts.Scenario)
	if err != nil {
		return err
	}
	out, err := eng.RunScenario(ctx, m, sc)
	if err != nil {
		return err
	}
	if out.Result != nil {
		return writeResult(opts.Options, m, out.Result)
	}
	return writePSA(opts.Options, m, out.Iterations)
}
