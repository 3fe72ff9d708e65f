package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/expr"
)

// Settings configures a probabilistic sensitivity analysis.
type Settings struct {
	Iterations int
	// CRN1 reseeds the parameter stream from (Seed1, i) every iteration.
	CRN1  bool
	Seed1 int64
	// CRN2 reseeds the tree stream from (Seed2, i) every iteration.
	CRN2  bool
	Seed2 int64
	// SampleParams draws unlocked parameters each iteration; otherwise they
	// stay at their expected values.
	SampleParams bool
	// UseParamSets replays Model.ParamSets row i instead of sampling.
	UseParamSets bool
	// Workers above 1 evaluates iterations in parallel on model clones.
	Workers int
	// Sink receives every iteration as it completes. Calls are serialized.
	Sink IterationSink
}

// SettingsFrom builds PSA settings from a scenario.
func SettingsFrom(sc *domain.Scenario) Settings {
	return Settings{
		Iterations:   sc.NumIterations,
		CRN1:         sc.CRN1,
		Seed1:        sc.Seed1,
		CRN2:         sc.CRN2,
		Seed2:        sc.Seed2,
		SampleParams: sc.SampleParams,
		UseParamSets: sc.UseParamSets,
	}
}

// IterationResult is the outcome of one PSA iteration.
type IterationResult struct {
	Index    int      `json:"index"`
	Branches []Branch `json:"branches"`
	// Params holds the parameter values used, in Model.Parameters order.
	Params []float64 `json:"params,omitempty"`
}

// IterationSink consumes iteration results, e.g. a result store or a
// progress stream.
type IterationSink interface {
	Record(ctx context.Context, model string, it IterationResult) error
}

// SinkFunc adapts a function to IterationSink.
type SinkFunc func(ctx context.Context, model string, it IterationResult) error

func (f SinkFunc) Record(ctx context.Context, model string, it IterationResult) error {
	return f(ctx, model, it)
}

// RunPSA evaluates the model s.Iterations times with sampled stochastic
// terms. The model itself is not modified; iterations run on clones.
// Results are ordered by iteration index.
func (e *Engine) RunPSA(ctx context.Context, m *domain.Model, s Settings) ([]IterationResult, error) {
	if s.Iterations <= 0 {
		return nil, fmt.Errorf("psa needs at least one iteration, got %d", s.Iterations)
	}
	if s.UseParamSets && len(m.ParamSets) < s.Iterations {
		return nil, fmt.Errorf("psa needs %d parameter sets, model has %d", s.Iterations, len(m.ParamSets))
	}

	start := time.Now()
	e.logger.Info("PSA started", "model", m.Name, "iterations", s.Iterations, "workers", max(s.Workers, 1))

	d := &driver{engine: e, settings: s, results: make([]IterationResult, s.Iterations)}
	var err error
	if s.Workers <= 1 {
		err = d.sequential(ctx, m)
	} else {
		err = d.parallel(ctx, m)
	}
	if err != nil {
		e.logger.Error("PSA failed", "model", m.Name, "error", err)
		return nil, err
	}
	e.logger.Info("PSA finished", "model", m.Name, "duration", time.Since(start))
	return d.results, nil
}

type driver struct {
	engine   *Engine
	settings Settings
	results  []IterationResult

	mu   sync.Mutex
	done int
}

func (d *driver) sequential(ctx context.Context, m *domain.Model) error {
	c := m.Clone()
	for i := range d.settings.Iterations {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.iterate(ctx, c, i, false); err != nil {
			return err
		}
	}
	return nil
}

func (d *driver) parallel(ctx context.Context, m *domain.Model) error {
	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan int)

	g.Go(func() error {
		defer close(jobs)
		for i := range d.settings.Iterations {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for range d.settings.Workers {
		c := m.Clone()
		g.Go(func() error {
			for i := range jobs {
				if err := d.iterate(ctx, c, i, true); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// iterate runs iteration i on c. Independent reseeding from the model seed
// keeps parallel runs reproducible without CRN.
func (d *driver) iterate(ctx context.Context, c *domain.Model, i int, independent bool) error {
	s := d.settings

	// 1. Streams
	streams := c.Streams()
	switch {
	case s.CRN1:
		streams.Reseed(expr.StreamParams, s.Seed1, i)
	case independent:
		streams.Reseed(expr.StreamParams, c.Seed, i)
	}
	switch {
	case s.CRN2:
		streams.Reseed(expr.StreamTree, s.Seed2, i)
	case independent:
		streams.Reseed(expr.StreamTree, c.Seed, i)
	}

	// 2. Parameters
	if s.UseParamSets {
		if i >= len(c.ParamSets) {
			return fmt.Errorf("iteration %d: no parameter set", i)
		}
		if err := c.SetParameterValues(c.ParamSets[i]); err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}
	} else {
		c.ResetParameters()
		if err := c.ResolveParameters(s.SampleParams); err != nil {
			return fmt.Errorf("iteration %d: %w", i, &domain.EvaluationError{Node: "parameters", Err: err})
		}
	}

	// 3. Rollout
	res, err := d.engine.Run(ctx, c, Sampled(), KeepParameters())
	if err != nil {
		return fmt.Errorf("iteration %d: %w", i, err)
	}
	it := IterationResult{Index: i, Branches: res.Branches, Params: parameterValues(c)}
	return d.record(ctx, c.Name, it)
}

func (d *driver) record(ctx context.Context, model string, it IterationResult) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.results[it.Index] = it
	d.done++
	if d.settings.Sink != nil {
		if err := d.settings.Sink.Record(ctx, model, it); err != nil {
			return fmt.Errorf("iteration %d: sink: %w", it.Index, err)
		}
	}
	if hook := d.engine.hooks.OnIteration; hook != nil {
		outcomes := make(map[string][]float64, len(it.Branches))
		for _, b := range it.Branches {
			outcomes[b.Name] = b.Values
		}
		hook(ctx, &domain.IterationEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventIteration, Model: model},
			Iteration: it.Index,
			Total:     d.settings.Iterations,
			Outcomes:  outcomes,
		})
	}
	d.engine.logger.Debug("Iteration finished", "model", model, "iteration", it.Index, "done", d.done)
	return nil
}

func parameterValues(m *domain.Model) []float64 {
	out := make([]float64, len(m.Parameters))
	for k, p := range m.Parameters {
		if f, err := p.Value.Float(); err == nil {
			out[k] = f
		}
	}
	return out
}
