package sqlite

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the latest schema version supported by the migrator.
const SchemaVersion = 1

// Migrate ensures the result schema exists and is upgraded to SchemaVersion.
func Migrate(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migrate: db is nil")
	}

	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY);`)
	if err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	err = db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations;`).Scan(&current)
	if err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}
	if current >= SchemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS iterations (
			model TEXT NOT NULL,
			idx INTEGER NOT NULL,
			branches TEXT NOT NULL,
			params TEXT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (model, idx)
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate: create iterations table: %w", err)
	}

	_, err = tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?);`, SchemaVersion)
	if err != nil {
		return fmt.Errorf("migrate: record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit transaction: %w", err)
	}
	return nil
}
