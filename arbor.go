package arbor

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aretw0/loam"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/internal/validator"
	"github.com/aretw0/arbor/pkg/adapters/file"
	loamAdapter "github.com/aretw0/arbor/pkg/adapters/loam"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/workspace"
)

//go:embed VERSION
var version string

// Version is the release of the arbor module.
var Version = strings.TrimSpace(version)

// ErrScenarioNotFound is returned when a model has no scenario of the requested name.
var ErrScenarioNotFound = errors.New("scenario not found")

// Engine is the high-level entry point for the Arbor library.
// It binds the evaluation runtime to a model store, an optional scenario
// library and an optional PSA result store.
type Engine struct {
	runtime     *runtime.Engine
	store       ports.ModelStore
	workspace   *workspace.Manager
	library     ports.ScenarioLibrary
	results     ports.ResultStore
	locker      ports.DistributedLocker
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	runtimeOpts []runtime.Option
	writable    bool
	Name        string
}

var _ ports.Evaluator = (*Engine)(nil)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithStore injects a custom ModelStore, bypassing the default model directory.
func WithStore(s ports.ModelStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLibrary injects a custom ScenarioLibrary, bypassing the default Loam library.
func WithLibrary(l ports.ScenarioLibrary) Option {
	return func(e *Engine) {
		e.library = l
	}
}

// WithResults records every PSA iteration into rs.
func WithResults(rs ports.ResultStore) Option {
	return func(e *Engine) {
		e.results = rs
	}
}

// WithLocker serializes model edits and evaluations across processes.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithWritableLibrary opens the default scenario library with write access,
// so SaveScenario can store documents. It is read-only otherwise.
func WithWritableLibrary() Option {
	return func(e *Engine) {
		e.writable = true
	}
}

// WithMaxCycles caps Markov chain cycles per run.
func WithMaxCycles(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxCycles(n))
	}
}

// WithTolerance sets the tolerance used for probability sums.
func WithTolerance(tol float64) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithTolerance(tol))
	}
}

// WithDecisionPolicy overrides how decision nodes choose a branch.
func WithDecisionPolicy(p runtime.DecisionPolicy) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithDecisionPolicy(p))
	}
}

// New initializes a new Arbor Engine over the workspace at dir.
// By default, models are files under dir/models and scenarios are Markdown
// documents under dir/scenarios, read through Loam.
// If WithStore is provided, dir may be empty; the Loam library is then
// only opened when dir is set.
func New(dir string, opts ...Option) (*Engine, error) {
	eng := &Engine{}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.store == nil && dir == "" {
		return nil, fmt.Errorf("dir is required when no custom store is provided")
	}

	if dir != "" {
		absPath, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		eng.Name = filepath.Base(absPath)

		if eng.store == nil {
			eng.store = file.New(filepath.Join(absPath, "models"))
		}

		if eng.library == nil {
			// Strict mode keeps numbers as json.Number so seeds survive decoding.
			repo, err := loam.Init(absPath,
				loam.WithStrict(true),
				loam.WithVersioning(false),
				loam.WithReadOnly(!eng.writable),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize loam: %w", err)
			}
			eng.library = loamAdapter.New(loam.NewTypedRepository[loamAdapter.ScenarioMetadata](repo))
		}
	}

	if eng.logger == nil {
		eng.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("workspace", eng.Name)
	}

	runtimeOpts := []runtime.Option{
		runtime.WithHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)
	eng.runtime = runtime.NewEngine(runtimeOpts...)

	wsOpts := []workspace.Option{workspace.WithLogger(eng.logger)}
	if eng.locker != nil {
		wsOpts = append(wsOpts, workspace.WithLocker(eng.locker))
	}
	eng.workspace = workspace.NewManager(eng.store, wsOpts...)

	return eng, nil
}

// Validate checks the model and reports every issue found.
func (e *Engine) Validate(m *domain.Model) *validator.Report {
	return e.runtime.Validate(m)
}

// Run validates the model and evaluates it once.
func (e *Engine) Run(ctx context.Context, m *domain.Model, opts ...runtime.RunOption) (*runtime.Result, error) {
	if err := e.runtime.Validate(m).Err(); err != nil {
		return nil, err
	}
	return e.runtime.Run(ctx, m, opts...)
}

// RunPSA evaluates the model s.Iterations times. Without a sink of its own,
// iterations are recorded into the engine's result store.
func (e *Engine) RunPSA(ctx context.Context, m *domain.Model, s runtime.Settings) ([]runtime.IterationResult, error) {
	if err := e.runtime.Validate(m).Err(); err != nil {
		return nil, err
	}
	if s.Sink == nil && e.results != nil {
		s.Sink = e.results
	}
	return e.runtime.RunPSA(ctx, m, s)
}

// RunScenario evaluates a copy of the model with the scenario applied.
func (e *Engine) RunScenario(ctx context.Context, m *domain.Model, sc *domain.Scenario, opts ...func(*runtime.Settings)) (*runtime.ScenarioResult, error) {
	if err := e.runtime.Validate(m).Err(); err != nil {
		return nil, err
	}
	if e.results != nil {
		opts = append([]func(*runtime.Settings){func(s *runtime.Settings) {
			if s.Sink == nil {
				s.Sink = e.results
			}
		}}, opts...)
	}
	return e.runtime.RunScenario(ctx, m, sc, opts...)
}

// Load reads a model from the store.
func (e *Engine) Load(ctx context.Context, name string) (*domain.Model, error) {
	return e.workspace.Load(ctx, name)
}

// Save writes a model to the store, keeping the previous version for undo.
func (e *Engine) Save(ctx context.Context, m *domain.Model) error {
	return e.workspace.Save(ctx, m.Name, m)
}

// Models lists the stored model names.
func (e *Engine) Models(ctx context.Context) ([]string, error) {
	return e.workspace.List(ctx)
}

// Scenarios returns the scenarios embedded in the model followed by those
// from the library. A library scenario replaces an embedded one of the same name.
func (e *Engine) Scenarios(ctx context.Context, m *domain.Model) ([]*domain.Scenario, error) {
	out := make([]*domain.Scenario, 0, len(m.Scenarios))
	index := make(map[string]int, len(m.Scenarios))
	for _, sc := range m.Scenarios {
		index[sc.Name] = len(out)
		out = append(out, sc.Copy())
	}
	if e.library == nil {
		return out, nil
	}

	lib, err := e.library.Scenarios(ctx, m.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario library: %w", err)
	}
	for _, sc := range lib {
		if i, ok := index[sc.Name]; ok {
			out[i] = sc
			continue
		}
		index[sc.Name] = len(out)
		out = append(out, sc)
	}
	return out, nil
}

// Scenario finds one scenario of the model by name.
func (e *Engine) Scenario(ctx context.Context, m *domain.Model, name string) (*domain.Scenario, error) {
	all, err := e.Scenarios(ctx, m)
	if err != nil {
		return nil, err
	}
	for _, sc := range all {
		if sc.Name == name {
			return sc, nil
		}
	}
	return nil, fmt.Errorf("%w: %s in model %s", ErrScenarioNotFound, name, m.Name)
}

// SaveScenario stores sc in the scenario library.
func (e *Engine) SaveScenario(ctx context.Context, model string, sc *domain.Scenario) error {
	if e.library == nil {
		return fmt.Errorf("no scenario library configured")
	}
	return e.library.SaveScenario(ctx, model, sc)
}

// Workspace returns the manager serializing edits and evaluations.
func (e *Engine) Workspace() *workspace.Manager {
	return e.workspace
}

// Library returns the scenario library, or nil when none is configured.
func (e *Engine) Library() ports.ScenarioLibrary {
	return e.library
}

// Results returns the PSA result store, or nil when none is configured.
func (e *Engine) Results() ports.ResultStore {
	return e.results
}

// Runtime returns the evaluator without the facade's validation step.
func (e *Engine) Runtime() *runtime.Engine {
	return e.runtime
}

// Watch returns a channel that signals when a model or scenario changes.
// Returns error if neither the store nor the library supports watching.
func (e *Engine) Watch(ctx context.Context) (<-chan string, error) {
	var (
		sources []<-chan string
		errs    []error
	)
	for _, candidate := range []any{e.store, e.library} {
		w, ok := candidate.(ports.Watchable)
		if !ok {
			continue
		}
		ch, err := w.Watch(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		sources = append(sources, ch)
	}

	switch len(sources) {
	case 0:
		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		return nil, fmt.Errorf("current store does not support watching")
	case 1:
		for _, err := range errs {
			e.logger.Warn("Watch source unavailable", "err", err)
		}
		return sources[0], nil
	}

	out := make(chan string, 1)
	done := make(chan struct{})
	for _, src := range sources {
		go func(src <-chan string) {
			defer func() { done <- struct{}{} }()
			for id := range src {
				select {
				case out <- id:
				case <-ctx.Done():
					return
				}
			}
		}(src)
	}
	go func() {
		for range sources {
			<-done
		}
		close(out)
	}()
	return out, nil
}
