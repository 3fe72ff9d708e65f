package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/observability"
)

// createEngine initializes an Arbor engine with standard CLI conventions.
func createEngine(opts Options, logger *slog.Logger, extra ...arbor.Option) (*arbor.Engine, error) {
	// 1. Logger & Hooks
	if logger == nil {
		logger = logging.NewNop()
	}
	engineOpts := []arbor.Option{
		arbor.WithLogger(logger),
		arbor.WithLifecycleHooks(observability.LogHooks(logger)),
	}
	engineOpts = append(engineOpts, extra...)

	// 2. Initialize
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	engine, err := arbor.New(dir, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return engine, nil
}

// resolveModel loads ref as a model file when it names one on disk and
// from the workspace otherwise. An empty ref picks the default model.
func resolveModel(ctx context.Context, eng *arbor.Engine, dir, ref string) (*domain.Model, error) {
	if ref == "" {
		name, err := determineModel(ctx, eng, dir)
		if err != nil {
			return nil, err
		}
		ref = name
	}
	if _, err := file.FormatOf(ref); err == nil {
		if _, err := os.Stat(ref); err == nil {
			return file.LoadModel(ref)
		}
	}
	m, err := eng.Load(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", ref, err)
	}
	return m, nil
}

// determineModel picks the model to use when none is named: the only model
// in the workspace, or the one named after the workspace directory.
func determineModel(ctx context.Context, eng *arbor.Engine, dir string) (string, error) {
	names, err := eng.Models(ctx)
	if err != nil {
		return "", err
	}
	if len(names) == 1 {
		return names[0], nil
	}

	abs, err := filepath.Abs(dir)
	if err == nil {
		base := filepath.Base(abs)
		for _, n := range names {
			if n == base {
				return n, nil
			}
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no models found in %s", filepath.Join(dir, "models"))
	}
	return "", fmt.Errorf("several models found, name one of %v", names)
}
