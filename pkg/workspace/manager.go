package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed holder keeps a distributed lock.
const DefaultLockTTL = 30 * time.Second

// DefaultHistory is the number of undo steps kept per model.
const DefaultHistory = 50

// ErrNothingToUndo is returned by Undo and Redo when the history is empty.
var ErrNothingToUndo = errors.New("nothing to undo")

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates model access, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.ModelStore

	mu    sync.Mutex            // Global lock for the maps
	locks map[string]*lockEntry // Active locks
	hist  map[string]*domain.History

	locker       ports.DistributedLocker // Optional distributed locker
	lockTTL      time.Duration
	historyLimit int
	logger       *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithHistory sets how many undo steps are kept per model.
func WithHistory(limit int) Option {
	return func(m *Manager) {
		m.historyLimit = limit
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a workspace over store.
func NewManager(store ports.ModelStore, opts ...Option) *Manager {
	m := &Manager{
		store:        store,
		locks:        make(map[string]*lockEntry),
		hist:         make(map[string]*domain.History),
		lockTTL:      DefaultLockTTL,
		historyLimit: DefaultHistory,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu and call release(name) after unlocking.
func (m *Manager) acquire(name string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[name]
	if !exists {
		entry = &lockEntry{}
		m.locks[name] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[name]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, name)
	}
}

func (m *Manager) history(name string) *domain.History {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.hist[name]
	if !ok {
		h = domain.NewHistory(m.historyLimit)
		m.hist[name] = h
	}
	return h
}

// Load retrieves a model from the store.
func (m *Manager) Load(ctx context.Context, name string) (*domain.Model, error) {
	var model *domain.Model
	err := m.WithLock(ctx, name, func(ctx context.Context) error {
		var err error
		model, err = m.store.Load(ctx, name)
		return err
	})
	return model, err
}

// Save replaces the stored model. The previous version, if any, becomes an
// undo step.
func (m *Manager) Save(ctx context.Context, name string, model *domain.Model) error {
	return m.WithLock(ctx, name, func(ctx context.Context) error {
		prev, err := m.store.Load(ctx, name)
		switch {
		case err == nil:
			m.history(name).Save("save", prev)
		case !errors.Is(err, domain.ErrModelNotFound):
			return fmt.Errorf("failed to load previous version: %w", err)
		}
		return m.store.Save(ctx, name, model)
	})
}

// Update loads the model, applies fn and saves the result. Nothing is saved
// when fn fails. label names the edit in the undo history.
func (m *Manager) Update(ctx context.Context, name, label string, fn func(*domain.Model) error) (*domain.Model, error) {
	var model *domain.Model
	err := m.WithLock(ctx, name, func(ctx context.Context) error {
		var err error
		model, err = m.store.Load(ctx, name)
		if err != nil {
			return err
		}
		before := model.Clone()
		if err := fn(model); err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		if err := m.store.Save(ctx, name, model); err != nil {
			return err
		}
		m.history(name).Save(label, before)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return model, nil
}

// Evaluate loads the model and runs fn on it while edits are held off.
// Changes fn makes to the model are not saved.
func (m *Manager) Evaluate(ctx context.Context, name string, fn func(context.Context, *domain.Model) error) error {
	return m.WithLock(ctx, name, func(ctx context.Context) error {
		model, err := m.store.Load(ctx, name)
		if err != nil {
			return err
		}
		return fn(ctx, model)
	})
}

// Undo restores the version before the last edit and returns its label.
func (m *Manager) Undo(ctx context.Context, name string) (string, error) {
	return m.step(ctx, name, (*domain.History).Undo)
}

// Redo re-applies the last undone edit and returns its label.
func (m *Manager) Redo(ctx context.Context, name string) (string, error) {
	return m.step(ctx, name, (*domain.History).Redo)
}

func (m *Manager) step(ctx context.Context, name string, move func(*domain.History, *domain.Model) (*domain.Model, string, bool)) (string, error) {
	var label string
	err := m.WithLock(ctx, name, func(ctx context.Context) error {
		current, err := m.store.Load(ctx, name)
		if err != nil {
			return err
		}
		restored, l, ok := move(m.history(name), current)
		if !ok {
			return ErrNothingToUndo
		}
		label = l
		return m.store.Save(ctx, name, restored)
	})
	return label, err
}

// Delete removes the model and its history.
func (m *Manager) Delete(ctx context.Context, name string) error {
	return m.WithLock(ctx, name, func(ctx context.Context) error {
		m.mu.Lock()
		delete(m.hist, name)
		m.mu.Unlock()
		return m.store.Delete(ctx, name)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying model store.
func (m *Manager) Store() ports.ModelStore {
	return m.store
}

// WithLock executes fn while holding the lock for the model.
func (m *Manager) WithLock(ctx context.Context, name string, fn func(context.Context) error) error {
	entry := m.acquire(name)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(name)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, name, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"model", name,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
