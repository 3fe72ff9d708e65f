package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// ScenarioLibrary stores named scenarios outside the model file, so
// analysts can keep what-if runs under version control.
type ScenarioLibrary interface {
	// Scenarios returns every scenario registered for model.
	Scenarios(ctx context.Context, model string) ([]*domain.Scenario, error)

	// SaveScenario stores sc under model, replacing one with the same name.
	SaveScenario(ctx context.Context, model string, sc *domain.Scenario) error
}

// Watchable defines an interface for libraries that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that receives the ID of each changed document.
	Watch(ctx context.Context) (<-chan string, error)
}
