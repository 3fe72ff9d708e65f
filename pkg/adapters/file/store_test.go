package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Contract(t *testing.T) {
	for _, f := range Formats {
		t.Run(string(f), func(t *testing.T) {
			ports.RunModelStoreContract(t, New(t.TempDir(), WithFormat(f)))
		})
	}
}

func TestStore_FormatSwitch(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	m := domain.NewModel("switch", "Cost")

	require.NoError(t, New(dir).Save(ctx, "switch", m))
	require.NoError(t, New(dir, WithFormat(FormatHCL)).Save(ctx, "switch", m))

	_, err := os.Stat(filepath.Join(dir, "switch.json"))
	assert.True(t, os.IsNotExist(err), "old format copy should be removed")

	names, err := New(dir).List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"switch"}, names)

	loaded, err := New(dir).Load(ctx, "switch")
	require.NoError(t, err)
	assert.Equal(t, "switch", loaded.Name)
}

func TestStore_InvalidName(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()
	for _, name := range []string{"", "..", "a/b", `a\b`} {
		assert.Error(t, s.Save(ctx, name, domain.NewModel("x")), name)
		_, err := s.Load(ctx, name)
		assert.Error(t, err, name)
	}
}

func TestStore_ListMissingDir(t *testing.T) {
	names, err := New(filepath.Join(t.TempDir(), "missing")).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLoadModel(t *testing.T) {
	dir := t.TempDir()
	m := domain.NewModel("ext", "Cost", "QALY")
	_, err := m.Tree.AddChild(0, domain.KindChance)
	require.NoError(t, err)

	for _, name := range []string{"m.json", "m.yaml", "m.yml", "m.hcl"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, WriteModel(path, m))

			loaded, err := LoadModel(path)
			require.NoError(t, err)
			assert.Equal(t, "ext", loaded.Name)
			assert.Equal(t, 2, loaded.Tree.Len())
			assert.Equal(t, []string{"Cost", "QALY"}, loaded.Dimensions.Names)
		})
	}
}

func TestLoadModel_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadModel(filepath.Join(dir, "model.txt"))
	assert.ErrorContains(t, err, "unsupported")

	_, err = LoadModel(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0644))
	_, err = LoadModel(bad)
	assert.Error(t, err)
}
