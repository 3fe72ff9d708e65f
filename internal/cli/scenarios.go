package cli

import (
	"context"

	"github.com/aretw0/arbor/internal/presentation/tui"
)

// ListScenarios prints the scenarios available to a model, from the model
// itself and from the workspace library.
func ListScenarios(ctx context.Context, opts Options, ref string) error {
	logger, err := createLogger(opts.LogLevel)
	if err != nil {
		return err
	}
	eng, err := createEngine(opts, logger)
	if err != nil {
		return err
	}
	m, err := resolveModel(ctx, eng, opts.Dir, ref)
	if err != nil {
		return err
	}
	list, err := eng.Scenarios(ctx, m)
	if err != nil {
		return err
	}
	if opts.JSON {
		return writeJSON(opts.out(), list)
	}
	return writeMarkdown(opts.out(), tui.ScenarioReport(m.Name, list))
}
