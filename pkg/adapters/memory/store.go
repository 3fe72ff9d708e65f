package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// Store implements ports.ModelStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Model
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Model),
	}
}

// Save persists a deep copy of the model in memory.
func (s *Store) Save(ctx context.Context, name string, m *domain.Model) error {
	c := m.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = c
	return nil
}

// Load retrieves a copy of the model so callers can't mutate the store by pointer.
func (s *Store) Load(ctx context.Context, name string) (*domain.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data[name]
	if !ok {
		return nil, domain.ErrModelNotFound
	}
	return m.Clone(), nil
}

// Delete removes the model.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, name)
	return nil
}

// List returns stored model names in sorted order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
