package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/arbor/internal/presentation/graph"
)

// GraphOptions configures the graph command.
type GraphOptions struct {
	Options
	Model string
	// Results annotates nodes with expected values and marks chosen branches.
	Results bool
}

// Graph prints the model tree as a Mermaid diagram.
func Graph(ctx context.Context, opts GraphOptions) error {
	logger, err := createLogger(opts.LogLevel)
	if err != nil {
		return err
	}
	eng, err := createEngine(opts.Options, logger)
	if err != nil {
		return err
	}
	m, err := resolveModel(ctx, eng, opts.Dir, opts.Model)
	if err != nil {
		return err
	}

	var overlay *graph.Overlay
	if opts.Results {
		res, err := eng.Run(ctx, m)
		if err != nil {
			return fmt.Errorf("run %s: %w", m.Name, err)
		}
		overlay = graph.OverlayFrom(m, res)
	}
	_, err = io.WriteString(opts.out(), graph.GenerateMermaid(m, overlay))
	return err
}
