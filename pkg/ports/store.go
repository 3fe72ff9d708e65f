package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// ModelStore defines the interface for persisting models.
type ModelStore interface {
	// Save persists the model under name, replacing any previous version.
	Save(ctx context.Context, name string, m *domain.Model) error

	// Load retrieves the model stored under name.
	// Returns domain.ErrModelNotFound if it does not exist.
	Load(ctx context.Context, name string) (*domain.Model, error)

	// Delete removes the model stored under name.
	Delete(ctx context.Context, name string) error

	// List returns the names of all stored models.
	List(ctx context.Context) ([]string, error)
}
