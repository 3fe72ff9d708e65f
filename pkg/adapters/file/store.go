package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// Store implements ports.ModelStore over a directory of model files.
// Each model is stored as <name><ext> in the configured format.
type Store struct {
	BasePath string
	format   Format
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithFormat selects the encoding used by Save. Load accepts every format.
func WithFormat(f Format) StoreOption {
	return func(s *Store) { s.format = f }
}

// New creates a Store rooted at basePath.
// If basePath is empty, it defaults to ".arbor/models".
func New(basePath string, opts ...StoreOption) *Store {
	if basePath == "" {
		basePath = filepath.Join(".arbor", "models")
	}
	s := &Store{BasePath: basePath, format: FormatJSON}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid model name %q", name)
	}
	return nil
}

// Save writes the model atomically and removes copies in other formats.
func (s *Store) Save(ctx context.Context, name string, m *domain.Model) error {
	if err := checkName(name); err != nil {
		return err
	}
	data, err := Encode(s.format, m)
	if err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(s.BasePath, name+string(s.format)), data); err != nil {
		return err
	}
	for _, f := range Formats {
		if f != s.format {
			_ = os.Remove(filepath.Join(s.BasePath, name+string(f)))
		}
	}
	return nil
}

// Load reads the model stored under name in whichever format it was saved.
func (s *Store) Load(ctx context.Context, name string) (*domain.Model, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	for _, f := range Formats {
		path := filepath.Join(s.BasePath, name+string(f))
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read model file: %w", err)
		}
		return Decode(f, data, path)
	}
	return nil, domain.ErrModelNotFound
}

// Delete removes every file stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	for _, f := range Formats {
		err := os.Remove(filepath.Join(s.BasePath, name+string(f)))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete model file: %w", err)
		}
	}
	return nil
}

// List returns the stored model names in sorted order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), "tmp-") {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if !slices.Contains(Formats, Format(ext)) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}
