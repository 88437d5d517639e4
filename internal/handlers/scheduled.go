package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/doppelfm/doppel/internal/db"
)

type scheduledSearchRequest struct {
	Name           string   `json:"name"`
	Roots          []string `json:"roots"`
	ByName         bool     `json:"by_name"`
	BySize         bool     `json:"by_size"`
	ByContent      bool     `json:"by_content"`
	CronExpression string   `json:"cron_expression"`
	Enabled        bool     `json:"enabled"`
}

type scheduledSearchView struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Roots          []string   `json:"roots"`
	ByName         bool       `json:"by_name"`
	BySize         bool       `json:"by_size"`
	ByContent      bool       `json:"by_content"`
	CronExpression string     `json:"cron_expression"`
	Enabled        bool       `json:"enabled"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time `json:"next_run_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toScheduledSearchView(s *db.ScheduledSearch) scheduledSearchView {
	return scheduledSearchView{
		ID:             s.ID,
		Name:           s.Name,
		Roots:          s.Roots,
		ByName:         s.ByName,
		BySize:         s.BySize,
		ByContent:      s.ByContent,
		CronExpression: s.CronExpression,
		Enabled:        s.Enabled,
		LastRunAt:      s.LastRunAt,
		NextRunAt:      s.NextRunAt,
		CreatedAt:      s.CreatedAt,
	}
}

// ScheduledSearches handles GET (list) and POST (create) on /api/scheduled.
func (h *Handler) ScheduledSearches(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listScheduledSearches(w)
	case http.MethodPost:
		h.createScheduledSearch(w, r)
	default:
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) listScheduledSearches(w http.ResponseWriter) {
	searches, err := h.db.ListScheduledSearches()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]scheduledSearchView, 0, len(searches))
	for _, s := range searches {
		views = append(views, toScheduledSearchView(s))
	}
	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handler) createScheduledSearch(w http.ResponseWriter, r *http.Request) {
	var req scheduledSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if len(req.Roots) == 0 {
		h.writeError(w, http.StatusBadRequest, "at least one root is required")
		return
	}
	if !req.ByName && !req.BySize && !req.ByContent {
		h.writeError(w, http.StatusBadRequest, "at least one search criterion is required")
		return
	}

	next, err := h.scheduler.NextRun(req.CronExpression, time.Now())
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid cron expression: "+err.Error())
		return
	}

	created, err := h.db.CreateScheduledSearch(&db.ScheduledSearch{
		Name:           req.Name,
		Roots:          req.Roots,
		ByName:         req.ByName,
		BySize:         req.BySize,
		ByContent:      req.ByContent,
		CronExpression: req.CronExpression,
		Enabled:        req.Enabled,
		NextRunAt:      &next,
	})
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, toScheduledSearchView(created))
}

// ScheduledSearchRoutes dispatches GET and DELETE on /api/scheduled/{id}.
func (h *Handler) ScheduledSearchRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 {
		http.NotFound(w, r)
		return
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		sched, err := h.db.GetScheduledSearch(id)
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(w, http.StatusNotFound, "scheduled search not found")
			return
		}
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		h.writeJSON(w, http.StatusOK, toScheduledSearchView(sched))
	case http.MethodDelete:
		if err := h.db.DeleteScheduledSearch(id); err != nil {
			h.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
