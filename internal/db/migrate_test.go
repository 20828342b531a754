// Package db tests for schema migrations.
package db

import (
	"testing"
)

// openTestDB opens a fresh database in a temp directory.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return database
}

// TestApply verifies migrations run and the schema version advances.
func TestApply(t *testing.T) {
	database := openTestDB(t)
	migrator := NewMigrator(database.DB)

	if err := migrator.Apply(); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	version, err := migrator.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != migrations[len(migrations)-1].Version {
		t.Errorf("version = %d, want %d", version, migrations[len(migrations)-1].Version)
	}

	// The queue table must exist after migration
	var name string
	err = database.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='offline_actions'").Scan(&name)
	if err != nil {
		t.Fatalf("offline_actions table missing: %v", err)
	}
}

// TestApplyIdempotent verifies a second Apply is a no-op.
func TestApplyIdempotent(t *testing.T) {
	database := openTestDB(t)
	migrator := NewMigrator(database.DB)

	if err := migrator.Apply(); err != nil {
		t.Fatalf("first Apply failed: %v", err)
	}
	if err := migrator.Apply(); err != nil {
		t.Fatalf("second Apply failed: %v", err)
	}

	var count int
	if err := database.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("failed to count migrations: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("applied migrations = %d, want %d", count, len(migrations))
	}
}

// TestHistoryGap verifies that a hole in the applied history is rejected
// rather than leaving the gapped migration silently unapplied.
func TestHistoryGap(t *testing.T) {
	database := openTestDB(t)
	migrator := NewMigrator(database.DB)

	if err := migrator.Apply(); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// Drop version 1 from the history; MAX(version) still covers it
	if _, err := database.Exec("DELETE FROM schema_migrations WHERE version = 1"); err != nil {
		t.Fatalf("failed to gap history: %v", err)
	}

	if err := migrator.Apply(); err == nil {
		t.Error("Apply succeeded despite a gapped migration history")
	}
}

// TestChecksumMismatch verifies that an edited released migration is rejected.
func TestChecksumMismatch(t *testing.T) {
	database := openTestDB(t)
	migrator := NewMigrator(database.DB)

	if err := migrator.Apply(); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// Tamper with the recorded checksum of version 1
	_, err := database.Exec(
		"UPDATE schema_migrations SET checksum = ? WHERE version = 1",
		checksum("SOMETHING ELSE"))
	if err != nil {
		t.Fatalf("failed to tamper checksum: %v", err)
	}

	if err := migrator.Apply(); err == nil {
		t.Error("Apply succeeded despite checksum mismatch")
	}
}
