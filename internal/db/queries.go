package db

import (
	"database/sql"
	"encoding/json"
	"time"
)

// SearchRun queries

// CreateSearchRun records the start of a new search
func (db *DB) CreateSearchRun(scheduledID *int64, roots []string, byName, bySize, byContent bool) (*SearchRun, error) {
	rootsJSON, err := json.Marshal(roots)
	if err != nil {
		return nil, err
	}

	result, err := db.Exec(`
		INSERT INTO search_runs (scheduled_id, status, roots, by_name, by_size, by_content, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		scheduledID, SearchRunStatusRunning, string(rootsJSON), byName, bySize, byContent, time.Now(),
	)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return db.GetSearchRun(id)
}

// GetSearchRun retrieves a search run by ID
func (db *DB) GetSearchRun(id int64) (*SearchRun, error) {
	row := db.QueryRow(`
		SELECT id, scheduled_id, status, roots, by_name, by_size, by_content,
			started_at, completed_at, files_scanned, candidates, files_hashed,
			files_skipped, groups_found, wasted_bytes, error_message
		FROM search_runs WHERE id = ?`, id)
	return scanSearchRun(row)
}

// ListSearchRuns returns search runs with pagination, newest first
func (db *DB) ListSearchRuns(limit, offset int) ([]*SearchRun, error) {
	rows, err := db.Query(`
		SELECT id, scheduled_id, status, roots, by_name, by_size, by_content,
			started_at, completed_at, files_scanned, candidates, files_hashed,
			files_skipped, groups_found, wasted_bytes, error_message
		FROM search_runs ORDER BY started_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*SearchRun
	for rows.Next() {
		r, err := scanSearchRunRow(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// UpdateSearchRunStats updates the counters of a search run
func (db *DB) UpdateSearchRunStats(id, filesScanned, candidates, filesHashed, filesSkipped, groupsFound, wastedBytes int64) error {
	_, err := db.Exec(`
		UPDATE search_runs SET
			files_scanned = ?, candidates = ?, files_hashed = ?,
			files_skipped = ?, groups_found = ?, wasted_bytes = ?
		WHERE id = ?`,
		filesScanned, candidates, filesHashed, filesSkipped, groupsFound, wastedBytes, id,
	)
	return err
}

// CompleteSearchRun marks a search run as finished
func (db *DB) CompleteSearchRun(id int64, status SearchRunStatus, errorMsg *string) error {
	_, err := db.Exec(`
		UPDATE search_runs SET status = ?, completed_at = ?, error_message = ?
		WHERE id = ?`,
		status, time.Now(), errorMsg, id,
	)
	return err
}

// DuplicateGroup queries

// CreateDuplicateGroup stores one group found by a completed run
func (db *DB) CreateDuplicateGroup(g *DuplicateGroup) error {
	filesJSON, err := json.Marshal(g.Files)
	if err != nil {
		return err
	}

	result, err := db.Exec(`
		INSERT INTO duplicate_groups (search_run_id, digest, file_size, file_count, wasted_bytes, files)
		VALUES (?, ?, ?, ?, ?, ?)`,
		g.SearchRunID, g.Digest, g.FileSize, g.FileCount, g.WastedBytes, string(filesJSON),
	)
	if err != nil {
		return err
	}

	g.ID, err = result.LastInsertId()
	return err
}

// ListDuplicateGroups returns all groups of a run, largest first
func (db *DB) ListDuplicateGroups(searchRunID int64) ([]*DuplicateGroup, error) {
	rows, err := db.Query(`
		SELECT id, search_run_id, digest, file_size, file_count, wasted_bytes, files
		FROM duplicate_groups WHERE search_run_id = ? ORDER BY file_size DESC`, searchRunID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*DuplicateGroup
	for rows.Next() {
		var g DuplicateGroup
		var filesJSON string
		if err := rows.Scan(&g.ID, &g.SearchRunID, &g.Digest, &g.FileSize,
			&g.FileCount, &g.WastedBytes, &filesJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(filesJSON), &g.Files); err != nil {
			return nil, err
		}
		groups = append(groups, &g)
	}
	return groups, rows.Err()
}

// ScheduledSearch queries

// CreateScheduledSearch stores a new cron-driven search
func (db *DB) CreateScheduledSearch(s *ScheduledSearch) (*ScheduledSearch, error) {
	rootsJSON, err := json.Marshal(s.Roots)
	if err != nil {
		return nil, err
	}

	result, err := db.Exec(`
		INSERT INTO scheduled_searches (name, roots, by_name, by_size, by_content, cron_expression, enabled, next_run_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Name, string(rootsJSON), s.ByName, s.BySize, s.ByContent, s.CronExpression, s.Enabled, s.NextRunAt,
	)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return db.GetScheduledSearch(id)
}

// GetScheduledSearch retrieves a scheduled search by ID
func (db *DB) GetScheduledSearch(id int64) (*ScheduledSearch, error) {
	row := db.QueryRow(`
		SELECT id, name, roots, by_name, by_size, by_content, cron_expression,
			enabled, last_run_at, next_run_at, created_at
		FROM scheduled_searches WHERE id = ?`, id)
	return scanScheduledSearch(row)
}

// ListScheduledSearches returns all scheduled searches
func (db *DB) ListScheduledSearches() ([]*ScheduledSearch, error) {
	return db.queryScheduledSearches(`
		SELECT id, name, roots, by_name, by_size, by_content, cron_expression,
			enabled, last_run_at, next_run_at, created_at
		FROM scheduled_searches ORDER BY id`)
}

// GetEnabledScheduledSearches returns scheduled searches that may run
func (db *DB) GetEnabledScheduledSearches() ([]*ScheduledSearch, error) {
	return db.queryScheduledSearches(`
		SELECT id, name, roots, by_name, by_size, by_content, cron_expression,
			enabled, last_run_at, next_run_at, created_at
		FROM scheduled_searches WHERE enabled = 1 ORDER BY id`)
}

func (db *DB) queryScheduledSearches(query string) ([]*ScheduledSearch, error) {
	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var searches []*ScheduledSearch
	for rows.Next() {
		s, err := scanScheduledSearchRow(rows)
		if err != nil {
			return nil, err
		}
		searches = append(searches, s)
	}
	return searches, rows.Err()
}

// UpdateScheduledSearchRun records that a scheduled search just ran
func (db *DB) UpdateScheduledSearchRun(id int64, lastRun, nextRun time.Time) error {
	_, err := db.Exec(`
		UPDATE scheduled_searches SET last_run_at = ?, next_run_at = ? WHERE id = ?`,
		lastRun, nextRun, id,
	)
	return err
}

// DeleteScheduledSearch removes a scheduled search
func (db *DB) DeleteScheduledSearch(id int64) error {
	_, err := db.Exec(`DELETE FROM scheduled_searches WHERE id = ?`, id)
	return err
}

// Settings queries

// GetSetting returns a setting value, or empty string when unset
func (db *DB) GetSetting(key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetSetting stores a setting value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// CleanupOldData removes runs (and their groups) older than retentionDays
func (db *DB) CleanupOldData(retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	_, err := db.Exec(`
		DELETE FROM duplicate_groups WHERE search_run_id IN (
			SELECT id FROM search_runs WHERE started_at < ?
		)`, cutoff)
	if err != nil {
		return err
	}

	_, err = db.Exec(`DELETE FROM search_runs WHERE started_at < ?`, cutoff)
	return err
}

// Row scanning helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSearchRun(row *sql.Row) (*SearchRun, error) {
	return scanSearchRunFrom(row)
}

func scanSearchRunRow(rows *sql.Rows) (*SearchRun, error) {
	return scanSearchRunFrom(rows)
}

func scanSearchRunFrom(s rowScanner) (*SearchRun, error) {
	var r SearchRun
	var rootsJSON string
	err := s.Scan(&r.ID, &r.ScheduledID, &r.Status, &rootsJSON, &r.ByName,
		&r.BySize, &r.ByContent, &r.StartedAt, &r.CompletedAt, &r.FilesScanned,
		&r.Candidates, &r.FilesHashed, &r.FilesSkipped, &r.GroupsFound,
		&r.WastedBytes, &r.ErrorMessage)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rootsJSON), &r.Roots); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanScheduledSearch(row *sql.Row) (*ScheduledSearch, error) {
	return scanScheduledSearchFrom(row)
}

func scanScheduledSearchRow(rows *sql.Rows) (*ScheduledSearch, error) {
	return scanScheduledSearchFrom(rows)
}

func scanScheduledSearchFrom(s rowScanner) (*ScheduledSearch, error) {
	var sch ScheduledSearch
	var rootsJSON string
	err := s.Scan(&sch.ID, &sch.Name, &rootsJSON, &sch.ByName, &sch.BySize,
		&sch.ByContent, &sch.CronExpression, &sch.Enabled, &sch.LastRunAt,
		&sch.NextRunAt, &sch.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rootsJSON), &sch.Roots); err != nil {
		return nil, err
	}
	return &sch, nil
}
