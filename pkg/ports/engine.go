package ports

import (
	"context"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/internal/validator"
	"github.com/aretw0/arbor/pkg/domain"
)

// Evaluator is the engine surface used by adapters (HTTP, MCP) that load
// models per request. *runtime.Engine implements it.
type Evaluator interface {
	// Validate checks the model and reports every issue found.
	Validate(m *domain.Model) *validator.Report

	// Run evaluates the model once.
	Run(ctx context.Context, m *domain.Model, opts ...runtime.RunOption) (*runtime.Result, error)

	// RunPSA evaluates the model repeatedly under sampled uncertainty.
	RunPSA(ctx context.Context, m *domain.Model, s runtime.Settings) ([]runtime.IterationResult, error)

	// RunScenario evaluates a copy of the model with the scenario applied.
	RunScenario(ctx context.Context, m *domain.Model, sc *domain.Scenario, opts ...func(*runtime.Settings)) (*runtime.ScenarioResult, error)
}

var _ Evaluator = (*runtime.Engine)(nil)
