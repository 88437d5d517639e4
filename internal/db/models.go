package db

import "time"

// SearchRunStatus represents the status of a search run
type SearchRunStatus string

const (
	SearchRunStatusRunning   SearchRunStatus = "running"
	SearchRunStatusCompleted SearchRunStatus = "completed"
	SearchRunStatusFailed    SearchRunStatus = "failed"
	SearchRunStatusCancelled SearchRunStatus = "cancelled"
)

// SearchRun represents a single execution of a duplicate search
type SearchRun struct {
	ID           int64
	ScheduledID  *int64 // set when started by the scheduler
	Status       SearchRunStatus
	Roots        []string
	ByName       bool
	BySize       bool
	ByContent    bool
	StartedAt    time.Time
	CompletedAt  *time.Time
	FilesScanned int64
	Candidates   int64
	FilesHashed  int64
	FilesSkipped int64
	GroupsFound  int64
	WastedBytes  int64
	ErrorMessage *string
}

// DuplicateGroup represents a stored group of duplicate files
type DuplicateGroup struct {
	ID          int64
	SearchRunID int64
	Digest      string // empty when the search ran without content checks
	FileSize    int64
	FileCount   int
	WastedBytes int64 // (count-1) * size
	Files       []string
}

// ScheduledSearch represents a cron job for automatic duplicate searches
type ScheduledSearch struct {
	ID             int64
	Name           string
	Roots          []string
	ByName         bool
	BySize         bool
	ByContent      bool
	CronExpression string
	Enabled        bool
	LastRunAt      *time.Time
	NextRunAt      *time.Time
	CreatedAt      time.Time
}
