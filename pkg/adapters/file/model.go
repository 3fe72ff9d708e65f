// Package file reads and writes models on the local filesystem.
package file

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/arbor/pkg/adapters/hcl"
	"github.com/aretw0/arbor/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Format is a model file encoding, named by its extension.
type Format string

const (
	FormatJSON Format = ".json"
	FormatYAML Format = ".yaml"
	FormatHCL  Format = ".hcl"
)

// Formats lists the encodings in lookup order.
var Formats = []Format{FormatJSON, FormatYAML, FormatHCL}

// FormatOf maps a path's extension to its Format.
func FormatOf(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".hcl":
		return FormatHCL, nil
	default:
		return "", fmt.Errorf("unsupported model file extension %q", ext)
	}
}

// LoadModel reads the model at path, choosing the decoder by extension.
func LoadModel(path string) (*domain.Model, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	return Decode(format, data, path)
}

// Decode parses data in the given format. name is used in diagnostics.
func Decode(format Format, data []byte, name string) (*domain.Model, error) {
	switch format {
	case FormatJSON:
		return domain.ParseModelJSON(data)
	case FormatYAML:
		return domain.ParseModelYAML(data)
	case FormatHCL:
		return hcl.Decode(data, name)
	default:
		return nil, fmt.Errorf("unsupported model format %q", format)
	}
}

// Encode renders m in the given format.
func Encode(format Format, m *domain.Model) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal model: %w", err)
		}
		return data, nil
	case FormatYAML:
		data, err := yaml.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal model: %w", err)
		}
		return data, nil
	case FormatHCL:
		return hcl.Encode(m)
	default:
		return nil, fmt.Errorf("unsupported model format %q", format)
	}
}

// WriteModel writes m to path atomically, choosing the encoder by extension.
func WriteModel(path string, m *domain.Model) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	data, err := Encode(format, m)
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

// writeAtomic writes to a temp file in the target directory, syncs it and
// renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure model directory: %w", err)
	}

	// 1. Create Temp File on the same filesystem
	tmpFile, err := os.CreateTemp(dir, "tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	// 2. Write Data
	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	// 3. Fsync
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}

	// 4. Close before rename (Windows)
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// 5. Rename. Windows refuses to rename over an existing file.
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove existing model file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
