package ports_test

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// MockStore keeps models as serialized JSON, like a real backend would.
type MockStore struct {
	data map[string][]byte
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string][]byte),
	}
}

func (m *MockStore) Save(ctx context.Context, name string, model *domain.Model) error {
	b, err := json.Marshal(model)
	if err != nil {
		return err
	}
	m.data[name] = b
	return nil
}

func (m *MockStore) Load(ctx context.Context, name string) (*domain.Model, error) {
	b, ok := m.data[name]
	if !ok {
		return nil, domain.ErrModelNotFound
	}
	return domain.ParseModelJSON(b)
}

func (m *MockStore) Delete(ctx context.Context, name string) error {
	delete(m.data, name)
	return nil
}

func (m *MockStore) List(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(m.data))
	for name := range m.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func TestModelStore_Contract(t *testing.T) {
	ports.RunModelStoreContract(t, NewMockStore())
}
