// Package db provides database schema migration management.
package db

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// Migration represents a database schema migration.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations is the ordered list of schema migrations. Entries are
// append-only: released versions are never edited (checksums are verified
// against the applied history on startup).
var migrations = []Migration{
	{
		Version:     1,
		Description: "create offline_actions table",
		SQL: `
		CREATE TABLE IF NOT EXISTS offline_actions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL CHECK(length(kind) > 0),
			payload TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING'
				CHECK(status IN ('PENDING','SYNCED','ERROR')),
			error_message TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL CHECK(created_at > 0)
		);`,
	},
	{
		Version:     2,
		Description: "index offline_actions by status",
		SQL: `
		CREATE INDEX IF NOT EXISTS idx_offline_actions_status
			ON offline_actions(status);`,
	},
}

// Migrator handles database schema migrations.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (m *Migrator) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL CHECK(applied_at > 0),
		description TEXT NOT NULL CHECK(length(description) > 0),
		checksum TEXT NOT NULL CHECK(length(checksum) = 64)
	);`
	_, err := m.db.Exec(query)
	return err
}

// CurrentVersion returns the current schema version.
func (m *Migrator) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// Apply runs all pending migrations in order. Already-applied versions are
// verified against their recorded checksum and skipped.
func (m *Migrator) Apply() error {
	if err := m.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize migrations table: %w", err)
	}

	current, err := m.CurrentVersion()
	if err != nil {
		return err
	}

	for _, mig := range migrations {
		sum := checksum(mig.SQL)

		if mig.Version <= current {
			if err := m.verifyChecksum(mig.Version, sum); err != nil {
				return err
			}
			continue
		}

		tx, err := m.db.Begin()
		if err != nil {
			return err
		}

		if _, err := tx.Exec(mig.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", mig.Version, mig.Description, err)
		}

		_, err = tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description, checksum) VALUES (?, ?, ?, ?)",
			mig.Version, time.Now().Unix(), mig.Description, sum,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", mig.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

// verifyChecksum ensures an applied migration's SQL has not been edited.
// A version at or below the current schema version must have a history row;
// a gap means the recorded history was truncated or hand-edited.
func (m *Migrator) verifyChecksum(version int, expected string) error {
	var recorded string
	err := m.db.QueryRow("SELECT checksum FROM schema_migrations WHERE version = ?", version).Scan(&recorded)
	if err == sql.ErrNoRows {
		return fmt.Errorf("migration %d is missing from the applied history", version)
	}
	if err != nil {
		return err
	}
	if recorded != expected {
		return fmt.Errorf("migration %d checksum mismatch: recorded %s", version, recorded[:8])
	}
	return nil
}

// checksum computes the SHA-256 hex digest of a migration's SQL.
func checksum(sqlText string) string {
	sum := sha256.Sum256([]byte(sqlText))
	return hex.EncodeToString(sum[:])
}
