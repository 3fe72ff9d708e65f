package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// Library implements ports.ScenarioLibrary using an in-memory map.
type Library struct {
	mu        sync.RWMutex
	scenarios map[string]map[string]*domain.Scenario
}

// NewLibrary creates a library seeded with scenarios for one model.
func NewLibrary(model string, scenarios ...*domain.Scenario) *Library {
	l := &Library{scenarios: make(map[string]map[string]*domain.Scenario)}
	for _, sc := range scenarios {
		_ = l.SaveScenario(context.Background(), model, sc)
	}
	return l
}

// Scenarios returns copies of the model's scenarios sorted by name.
func (l *Library) Scenarios(ctx context.Context, model string) ([]*domain.Scenario, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*domain.Scenario, 0, len(l.scenarios[model]))
	for _, sc := range l.scenarios[model] {
		out = append(out, sc.Copy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SaveScenario stores a copy of sc.
func (l *Library) SaveScenario(ctx context.Context, model string, sc *domain.Scenario) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.scenarios[model] == nil {
		l.scenarios[model] = make(map[string]*domain.Scenario)
	}
	l.scenarios[model][sc.Name] = sc.Copy()
	return nil
}
