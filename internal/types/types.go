package types

// SearchOptions selects the grouping criteria for a duplicate search.
// At least one flag must be set. Groups built without ByContent are
// approximate: size/name equality is not proof of identical content.
type SearchOptions struct {
	ByName    bool `json:"by_name"`
	BySize    bool `json:"by_size"`
	ByContent bool `json:"by_content"`
}

// FileEntry describes one member of a duplicate group.
type FileEntry struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Modified int64  `json:"modified"` // unix seconds, 0 if unknown
}

// DuplicateGroup is a set of files that matched all enabled criteria.
// Size is the common byte size of the members, or 0 when the search ran
// by name only.
type DuplicateGroup struct {
	Size  int64       `json:"size"`
	Files []FileEntry `json:"files"`
}

// Search run statuses as broadcast to progress subscribers.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// SearchProgress is broadcast to subscribers while a search runs and once
// more with a terminal Status when it ends. Total 0 means unknown.
type SearchProgress struct {
	RunID   int64  `json:"run_id"`
	Stage   string `json:"stage"`
	Current int64  `json:"current"`
	Total   int64  `json:"total"`
	Message string `json:"message"`
	Status  string `json:"status"`
}
