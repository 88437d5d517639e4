package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/doppelfm/doppel/internal/db"
)

type searchRunView struct {
	ID           int64      `json:"id"`
	ScheduledID  *int64     `json:"scheduled_id,omitempty"`
	Status       string     `json:"status"`
	Roots        []string   `json:"roots"`
	ByName       bool       `json:"by_name"`
	BySize       bool       `json:"by_size"`
	ByContent    bool       `json:"by_content"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	FilesScanned int64      `json:"files_scanned"`
	GroupsFound  int64      `json:"groups_found"`
	WastedBytes  int64      `json:"wasted_bytes"`
	Error        *string    `json:"error,omitempty"`
}

type duplicateGroupView struct {
	ID          int64    `json:"id"`
	SearchRunID int64    `json:"search_run_id"`
	Digest      string   `json:"digest,omitempty"`
	FileSize    int64    `json:"file_size"`
	FileCount   int      `json:"file_count"`
	WastedBytes int64    `json:"wasted_bytes"`
	Files       []string `json:"files"`
}

func toSearchRunView(run *db.SearchRun) searchRunView {
	return searchRunView{
		ID:           run.ID,
		ScheduledID:  run.ScheduledID,
		Status:       string(run.Status),
		Roots:        run.Roots,
		ByName:       run.ByName,
		BySize:       run.BySize,
		ByContent:    run.ByContent,
		StartedAt:    run.StartedAt,
		CompletedAt:  run.CompletedAt,
		FilesScanned: run.FilesScanned,
		GroupsFound:  run.GroupsFound,
		WastedBytes:  run.WastedBytes,
		Error:        run.ErrorMessage,
	}
}

// History lists past search runs, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	runs, err := h.db.ListSearchRuns(limit, offset)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]searchRunView, 0, len(runs))
	for _, run := range runs {
		views = append(views, toSearchRunView(run))
	}
	h.writeJSON(w, http.StatusOK, views)
}

// HistoryRoutes dispatches /api/history/{id} and /api/history/{id}/groups.
func (h *Handler) HistoryRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// ["api", "history", "{id}"] or ["api", "history", "{id}", "groups"]
	if len(parts) < 3 {
		http.NotFound(w, r)
		return
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 4 && parts[3] == "groups" {
		h.historyGroups(w, id)
		return
	}
	if len(parts) == 3 {
		h.historyRun(w, id)
		return
	}
	http.NotFound(w, r)
}

func (h *Handler) historyRun(w http.ResponseWriter, id int64) {
	run, err := h.db.GetSearchRun(id)
	if errors.Is(err, sql.ErrNoRows) {
		h.writeError(w, http.StatusNotFound, "search run not found")
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, toSearchRunView(run))
}

func (h *Handler) historyGroups(w http.ResponseWriter, id int64) {
	groups, err := h.db.ListDuplicateGroups(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]duplicateGroupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, duplicateGroupView{
			ID:          g.ID,
			SearchRunID: g.SearchRunID,
			Digest:      g.Digest,
			FileSize:    g.FileSize,
			FileCount:   g.FileCount,
			WastedBytes: g.WastedBytes,
			Files:       g.Files,
		})
	}
	h.writeJSON(w, http.StatusOK, views)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
