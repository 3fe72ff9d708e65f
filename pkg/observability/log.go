package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/arbor/pkg/domain"
)

// LogHooks returns lifecycle hooks that log each event to logger.
// Cycles are logged at debug level.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			logger.DebugContext(ctx, "run_start", "model", e.Model, "sampled", e.Sampled)
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "run_finish", "model", e.Model, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.InfoContext(ctx, "run_finish", "model", e.Model, "sampled", e.Sampled, "duration", e.Duration)
		},
		OnCycle: func(ctx context.Context, e *domain.CycleEvent) {
			logger.DebugContext(ctx, "cycle", "model", e.Model, "chain", e.Chain, "cycle", e.Cycle)
		},
		OnIteration: func(ctx context.Context, e *domain.IterationEvent) {
			logger.DebugContext(ctx, "iteration", "model", e.Model, "iteration", e.Iteration, "total", e.Total)
		},
	}
}
