// Package handlers exposes the duplicate search service over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/doppelfm/doppel/internal/config"
	"github.com/doppelfm/doppel/internal/db"
	"github.com/doppelfm/doppel/internal/scheduler"
	"github.com/doppelfm/doppel/internal/services"
)

// Handler holds all HTTP handlers
type Handler struct {
	db        *db.DB
	cfg       *config.Config
	search    *services.Search
	scheduler *scheduler.Scheduler
	log       zerolog.Logger
}

// New creates a new Handler
func New(database *db.DB, cfg *config.Config, search *services.Search, sched *scheduler.Scheduler, logger zerolog.Logger) *Handler {
	return &Handler{
		db:        database,
		cfg:       cfg,
		search:    search,
		scheduler: sched,
		log:       logger,
	}
}

// RegisterRoutes registers all HTTP routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Duplicate searches
	mux.HandleFunc("/api/duplicates", h.Duplicates)
	mux.HandleFunc("/api/duplicates/cancel", h.CancelDuplicates)
	mux.HandleFunc("/api/duplicates/active", h.DuplicatesActive)

	// History
	mux.HandleFunc("/api/history", h.History)
	mux.HandleFunc("/api/history/", h.HistoryRoutes)

	// Scheduled searches
	mux.HandleFunc("/api/scheduled", h.ScheduledSearches)
	mux.HandleFunc("/api/scheduled/", h.ScheduledSearchRoutes)

	// Settings
	mux.HandleFunc("/api/settings/retention", h.Retention)

	// SSE
	mux.HandleFunc("/sse/duplicates", h.DuplicatesSSE)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn().Err(err).Msg("failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}
