package ports

import (
	"context"

	"github.com/aretw0/arbor/internal/runtime"
)

// ResultStore records PSA iterations. It doubles as a runtime.IterationSink
// so the driver can stream into it while running.
type ResultStore interface {
	runtime.IterationSink

	// Iterations returns every recorded iteration of model, ordered by index.
	Iterations(ctx context.Context, model string) ([]runtime.IterationResult, error)

	// Clear drops all iterations recorded for model.
	Clear(ctx context.Context, model string) error
}
