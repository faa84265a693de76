package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/trail/internal/config"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// FileName is the database file inside the data directory.
const FileName = "trail.db"

// ExportsDir is the default export/import directory inside the data directory.
const ExportsDir = "exports"

// Init initializes the SQLite database at baseDir/trail.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.trail.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(baseDir, 0700)

	// Create exports subdirectory
	exportsDir := filepath.Join(baseDir, ExportsDir)
	if err := os.MkdirAll(exportsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %w", err)
	}
	_ = os.Chmod(exportsDir, 0700)

	// Pragmas live in the DSN so they apply to every pooled connection
	dbPath := filepath.Join(baseDir, FileName)
	db, err := sql.Open(driverName, dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations (this creates the file if it doesn't exist)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions after file exists (best-effort)
	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// Driver returns the name of the SQL driver compiled into this build.
func Driver() string {
	return driverName
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: entries + full-text view
	if version < 1 {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		if _, err := tx.Exec(schemaV1); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if _, err := tx.Exec("PRAGMA user_version=1"); err != nil {
			return fmt.Errorf("failed to set user_version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// schemaV1 keeps the full entry as a JSON blob next to the columns used for
// filtering and sorting. entries_fts rows share the entries id as rowid.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS entries (
  id              INTEGER PRIMARY KEY,
  filename        TEXT NOT NULL UNIQUE,
  timestamp       INTEGER NOT NULL,
  date            TEXT NOT NULL,
  time            TEXT NOT NULL DEFAULT '',
  app_name        TEXT NOT NULL DEFAULT '',
  app_category    TEXT NOT NULL DEFAULT '',
  domain          TEXT NOT NULL DEFAULT '',
  activity        TEXT NOT NULL DEFAULT '',
  is_continuation INTEGER NOT NULL DEFAULT 0,
  data            TEXT NOT NULL,
  indexed_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_date_ts ON entries(date, timestamp);
CREATE INDEX IF NOT EXISTS idx_entries_app_ts ON entries(app_name COLLATE NOCASE, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_entries_ts ON entries(timestamp);

CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
  filename, activity, summary, details, tags,
  app_name, window_title, url, domain, page_title,
  video_title, video_channel,
  ide_file, ide_path, ide_project, git_branch,
  terminal_cwd, terminal_command, ssh_host,
  comm_channel, comm_recipient, document_title,
  tokenize = 'unicode61'
);
`

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
