// Package sqlite persists PSA iterations in SQLite so long runs can be
// inspected and summarised after the fact.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/arbor/internal/runtime"
	_ "modernc.org/sqlite"
)

// Store implements ports.ResultStore on a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dsn and migrates it.
// Use ":memory:" for a private in-memory database.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	// One connection: in-memory databases are per connection and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// New returns a Store bound to an existing, migrated database handle.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record implements runtime.IterationSink. Re-recording an index replaces it.
func (s *Store) Record(ctx context.Context, model string, it runtime.IterationResult) error {
	branches, err := json.Marshal(it.Branches)
	if err != nil {
		return fmt.Errorf("record iteration: marshal branches: %w", err)
	}
	var params any
	if it.Params != nil {
		b, err := json.Marshal(it.Params)
		if err != nil {
			return fmt.Errorf("record iteration: marshal params: %w", err)
		}
		params = string(b)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO iterations (model, idx, branches, params, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		model, it.Index, string(branches), params, now)
	if err != nil {
		return fmt.Errorf("record iteration %d: insert: %w", it.Index, err)
	}
	return nil
}

// Iterations returns the recorded iterations of model ordered by index.
func (s *Store) Iterations(ctx context.Context, model string) ([]runtime.IterationResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, branches, params FROM iterations WHERE model = ? ORDER BY idx`, model)
	if err != nil {
		return nil, fmt.Errorf("list iterations: query: %w", err)
	}
	defer rows.Close()

	out := []runtime.IterationResult{}
	for rows.Next() {
		var (
			it       runtime.IterationResult
			branches string
			params   sql.NullString
		)
		if err := rows.Scan(&it.Index, &branches, &params); err != nil {
			return nil, fmt.Errorf("list iterations: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(branches), &it.Branches); err != nil {
			return nil, fmt.Errorf("list iterations: iteration %d branches: %w", it.Index, err)
		}
		if params.Valid {
			if err := json.Unmarshal([]byte(params.String), &it.Params); err != nil {
				return nil, fmt.Errorf("list iterations: iteration %d params: %w", it.Index, err)
			}
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list iterations: rows: %w", err)
	}
	return out, nil
}

// Clear drops every iteration recorded for model.
func (s *Store) Clear(ctx context.Context, model string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM iterations WHERE model = ?`, model); err != nil {
		return fmt.Errorf("clear iterations: %w", err)
	}
	return nil
}
