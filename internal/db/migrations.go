package db

import (
	"fmt"
)

// Migrate runs all database migrations
func (db *DB) Migrate() error {
	// Create migrations table if not exists
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	// Run migrations
	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to run migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}

	return nil
}

const migration001 = `
-- Search runs (history)
CREATE TABLE search_runs (
    id INTEGER PRIMARY KEY,
    scheduled_id INTEGER,
    status TEXT NOT NULL DEFAULT 'running',
    roots TEXT NOT NULL DEFAULT '[]',
    by_name BOOLEAN DEFAULT 0,
    by_size BOOLEAN DEFAULT 0,
    by_content BOOLEAN DEFAULT 0,
    started_at DATETIME NOT NULL,
    completed_at DATETIME,
    files_scanned INTEGER DEFAULT 0,
    candidates INTEGER DEFAULT 0,
    files_hashed INTEGER DEFAULT 0,
    files_skipped INTEGER DEFAULT 0,
    groups_found INTEGER DEFAULT 0,
    wasted_bytes INTEGER DEFAULT 0,
    error_message TEXT
);

CREATE INDEX idx_search_runs_status ON search_runs(status);
CREATE INDEX idx_search_runs_started_at ON search_runs(started_at);

-- Duplicate groups found by completed runs
CREATE TABLE duplicate_groups (
    id INTEGER PRIMARY KEY,
    search_run_id INTEGER NOT NULL,
    digest TEXT NOT NULL DEFAULT '',
    file_size INTEGER NOT NULL,
    file_count INTEGER NOT NULL,
    wasted_bytes INTEGER NOT NULL,
    files TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX idx_duplicate_groups_search_run_id ON duplicate_groups(search_run_id);

-- Scheduled searches
CREATE TABLE scheduled_searches (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    roots TEXT NOT NULL DEFAULT '[]',
    by_name BOOLEAN DEFAULT 0,
    by_size BOOLEAN DEFAULT 1,
    by_content BOOLEAN DEFAULT 1,
    cron_expression TEXT NOT NULL,
    enabled BOOLEAN DEFAULT 1,
    last_run_at DATETIME,
    next_run_at DATETIME,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- App settings (key-value store)
CREATE TABLE settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

INSERT INTO settings (key, value) VALUES ('retention_days', '30');
`
