package observability

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine collectors.
type Metrics struct {
	Runs        *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
	Cycles      *prometheus.CounterVec
	Iterations  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// Collectors already registered by an earlier call are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_runs_total",
				Help: "Total number of evaluation passes",
			},
			[]string{"model", "outcome"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbor_run_duration_seconds",
				Help:    "Duration of evaluation passes",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
			[]string{"model"},
		),
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_markov_cycles_total",
				Help: "Total number of Markov cycles simulated",
			},
			[]string{"model", "chain"},
		),
		Iterations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_psa_iterations_total",
				Help: "Total number of completed PSA iterations",
			},
			[]string{"model"},
		),
	}

	var err error
	if m.Runs, err = register(reg, m.Runs); err != nil {
		return nil, err
	}
	if m.RunDuration, err = register(reg, m.RunDuration); err != nil {
		return nil, err
	}
	if m.Cycles, err = register(reg, m.Cycles); err != nil {
		return nil, err
	}
	if m.Iterations, err = register(reg, m.Iterations); err != nil {
		return nil, err
	}
	return m, nil
}

// register returns the collector already registered under the same
// descriptor, or c itself.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("failed to register metrics: %w", err)
	}
	return c, nil
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			outcome := "ok"
			if e.Err != nil {
				outcome = "error"
			}
			m.Runs.WithLabelValues(e.Model, outcome).Inc()
			m.RunDuration.WithLabelValues(e.Model).Observe(e.Duration.Seconds())
		},
		OnCycle: func(ctx context.Context, e *domain.CycleEvent) {
			m.Cycles.WithLabelValues(e.Model, e.Chain).Inc()
		},
		OnIteration: func(ctx context.Context, e *domain.IterationEvent) {
			m.Iterations.WithLabelValues(e.Model).Inc()
		},
	}
}
