// Package db persists search history, duplicate groups, scheduled
// searches and settings in a local sqlite database.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// DB wraps the sql handle with application queries.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	handle, err := sql.Open(driverName, dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite allows one writer at a time.
	handle.SetMaxOpenConns(1)

	db := &DB{handle}
	if err := db.Migrate(); err != nil {
		handle.Close()
		return nil, err
	}
	return db, nil
}
