package runtime

import (
	"log/slog"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/validator"
	"github.com/aretw0/arbor/pkg/domain"
)

const (
	// DefaultMaxCycles caps a chain rollout that never satisfies its termination condition.
	DefaultMaxCycles = 10000
	// DefaultTolerance bounds how far branch probabilities may stray from 1.
	DefaultTolerance = validator.DefaultTolerance
)

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithHooks registers lifecycle callbacks. Repeated calls are merged.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithMaxCycles overrides the per-chain safety cap.
func WithMaxCycles(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxCycles = n
		}
	}
}

// WithTolerance overrides the probability-sum tolerance used by Validate.
func WithTolerance(tol float64) Option {
	return func(e *Engine) {
		if tol > 0 {
			e.tolerance = tol
		}
	}
}

// WithDecisionPolicy replaces the rule that picks a decision node's value.
func WithDecisionPolicy(p DecisionPolicy) Option {
	return func(e *Engine) {
		if p != nil {
			e.policy = p
		}
	}
}

// RunOption configures a single Run.
type RunOption func(*runConfig)

type runConfig struct {
	finalize   bool
	keepParams bool
}

// Sampled makes stochastic terms commit draws instead of using their means.
func Sampled() RunOption {
	return func(c *runConfig) { c.finalize = true }
}

// KeepParameters skips parameter resolution; the caller has already
// resolved or pinned every parameter for this run.
func KeepParameters() RunOption {
	return func(c *runConfig) { c.keepParams = true }
}

func defaultLogger() *slog.Logger { return logging.NewNop() }
