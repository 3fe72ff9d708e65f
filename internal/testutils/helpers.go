// Package testutils holds fixtures shared by tests that need an on-disk workspace.
package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/domain"
)

// SetupWorkspace creates a temporary workspace and writes each model to
// models/<name>.json. It returns the absolute workspace path.
func SetupWorkspace(t *testing.T, models ...*domain.Model) string {
	t.Helper()

	dir, err := filepath.Abs(t.TempDir())
	require.NoError(t, err, "Failed to get absolute path for temp dir")

	for _, m := range models {
		WriteModel(t, dir, m)
	}
	return dir
}

// WriteModel stores m as models/<name>.json under dir.
func WriteModel(t *testing.T, dir string, m *domain.Model) string {
	t.Helper()
	path := filepath.Join(dir, "models", m.Name+".json")
	require.NoError(t, file.WriteModel(path, m), "Failed to write model %s", m.Name)
	return path
}

// WriteScenario writes a Markdown scenario document to scenarios/<model>/<name>.md.
func WriteScenario(t *testing.T, dir, model, name, content string) string {
	t.Helper()
	sub := filepath.Join(dir, "scenarios", model)
	require.NoError(t, os.MkdirAll(sub, 0755))
	path := filepath.Join(sub, name+".md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// SetupLibrary initializes a Loam repository in a temporary workspace with
// versioning disabled. Extra options are applied after that default.
func SetupLibrary(t *testing.T, opts ...loam.Option) (string, core.Repository) {
	t.Helper()

	dir := SetupWorkspace(t)
	repo, err := loam.Init(dir, append([]loam.Option{loam.WithVersioning(false)}, opts...)...)
	require.NoError(t, err, "Failed to init loam repo")

	return dir, repo
}
