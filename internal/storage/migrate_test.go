// Package storage tests for schema migrations.
package storage

import (
	"testing"
)

// TestMigrator_appliesInitialSchema verifies Open runs V1.
func TestMigrator_appliesInitialSchema(t *testing.T) {
	store := openTestStore(t)

	migrator := NewMigrator(store.DB, migrationFiles)
	version, err := migrator.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion() error = %v", err)
	}
	if version < 1 {
		t.Errorf("CurrentVersion() = %d, want >= 1", version)
	}
}

// TestMigrator_recordsChecksum verifies applied migrations carry metadata.
func TestMigrator_recordsChecksum(t *testing.T) {
	store := openTestStore(t)

	migrator := NewMigrator(store.DB, migrationFiles)
	applied, err := migrator.GetAppliedMigrations()
	if err != nil {
		t.Fatalf("GetAppliedMigrations() error = %v", err)
	}
	if len(applied) == 0 {
		t.Fatal("no applied migrations recorded")
	}

	first := applied[0]
	if first.Version != 1 {
		t.Errorf("first migration version = %d, want 1", first.Version)
	}
	if first.Description != "initial_schema" {
		t.Errorf("description = %q, want 'initial_schema'", first.Description)
	}
	if len(first.Checksum) != 64 {
		t.Errorf("checksum length = %d, want 64", len(first.Checksum))
	}
	if first.AppliedAt.IsZero() {
		t.Error("applied_at is zero")
	}
}

// TestMigrator_upIdempotent verifies a second Up applies nothing new.
func TestMigrator_upIdempotent(t *testing.T) {
	store := openTestStore(t)

	migrator := NewMigrator(store.DB, migrationFiles)
	before, err := migrator.GetAppliedMigrations()
	if err != nil {
		t.Fatalf("GetAppliedMigrations() error = %v", err)
	}

	if err := migrator.Up(); err != nil {
		t.Fatalf("second Up() error = %v", err)
	}

	after, err := migrator.GetAppliedMigrations()
	if err != nil {
		t.Fatalf("GetAppliedMigrations() error = %v", err)
	}
	if len(after) != len(before) {
		t.Errorf("second Up() changed applied count: %d -> %d", len(before), len(after))
	}
}

// TestMigrator_down verifies rollback drops the version record.
func TestMigrator_down(t *testing.T) {
	store := openTestStore(t)

	migrator := NewMigrator(store.DB, migrationFiles)
	if err := migrator.Down(); err != nil {
		t.Fatalf("Down() error = %v", err)
	}

	version, err := migrator.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion() error = %v", err)
	}
	if version != 0 {
		t.Errorf("CurrentVersion() after Down = %d, want 0", version)
	}

	// Tables from V1 are gone.
	var count int
	err = store.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='pending_changes'").Scan(&count)
	if err != nil {
		t.Fatalf("sqlite_master query error = %v", err)
	}
	if count != 0 {
		t.Error("pending_changes still exists after Down()")
	}
}
