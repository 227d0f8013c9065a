package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// FileName is the archive database inside the archive directory.
const FileName = "dynamics.db"

// Init opens (and creates if needed) the run archive at baseDir/dynamics.db.
// The baseDir parameter allows tests to use t.TempDir().
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	// Pragmas in the DSN apply to every pooled connection.
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS runs (
		  id              TEXT PRIMARY KEY,
		  created_at      INTEGER NOT NULL,
		  command         TEXT NOT NULL,
		  range_start     TEXT,
		  range_end       TEXT,
		  mappings_path   TEXT,
		  absorb_tag      TEXT,
		  refined         INTEGER NOT NULL DEFAULT 0,
		  record_count    INTEGER NOT NULL,
		  total_seconds   INTEGER NOT NULL,
		  unmatched_count INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_runs_created
		ON runs(created_at DESC);

		CREATE TABLE IF NOT EXISTS run_records (
		  run_id               TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		  position             INTEGER NOT NULL,
		  date                 TEXT NOT NULL,
		  project              TEXT NOT NULL,
		  project_task         TEXT NOT NULL,
		  project_display      TEXT NOT NULL,
		  project_task_display TEXT NOT NULL,
		  role                 TEXT NOT NULL,
		  type                 TEXT NOT NULL,
		  duration_seconds     INTEGER NOT NULL,
		  description_json     TEXT NOT NULL,
		  external_comment     TEXT NOT NULL,
		  output_separator     TEXT NOT NULL,
		  PRIMARY KEY (run_id, position)
		);

		CREATE TABLE IF NOT EXISTS run_absorption (
		  run_id                  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		  date                    TEXT NOT NULL,
		  slack_seconds           INTEGER NOT NULL,
		  admin_raw_seconds       INTEGER NOT NULL,
		  absorbed_seconds        INTEGER NOT NULL,
		  leftover_raw_seconds    INTEGER NOT NULL,
		  leftover_billed_seconds INTEGER NOT NULL,
		  PRIMARY KEY (run_id, date)
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
