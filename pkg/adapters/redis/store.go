package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.ModelStore using Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for stored models.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for models.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "arbor:model:",
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client { return s.client }

func (s *Store) key(name string) string {
	return s.prefix + name
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save persists the model to Redis as JSON.
func (s *Store) Save(ctx context.Context, name string, m *domain.Model) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}

	pipe := s.client.Pipeline()

	// 1. Save JSON with TTL
	pipe.Set(ctx, s.key(name), data, s.ttl)

	// 2. Add to Index (ZSET), scored by expiry
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  score,
		Member: name,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the model from Redis.
func (s *Store) Load(ctx context.Context, name string) (*domain.Model, error) {
	val, err := s.client.Get(ctx, s.key(name)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrModelNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	m, err := domain.ParseModelJSON(val)
	if err != nil {
		return nil, fmt.Errorf("failed to decode model %s: %w", name, err)
	}
	return m, nil
}

// Delete removes the model.
func (s *Store) Delete(ctx context.Context, name string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(name))
	pipe.ZRem(ctx, s.indexKey(), name)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns stored model names, pruning expired entries from the index.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired models: %w", err)
	}

	names, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return names, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
