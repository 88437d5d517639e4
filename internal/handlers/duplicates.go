package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/doppelfm/doppel/internal/dupes"
	"github.com/doppelfm/doppel/internal/types"
)

// duplicatesRequest is the JSON body for POST /api/duplicates.
type duplicatesRequest struct {
	Roots   []string            `json:"roots"`
	Options types.SearchOptions `json:"options"`
}

// duplicatesResponse is returned when a search reaches a terminal state.
type duplicatesResponse struct {
	Status string                 `json:"status"`
	Groups []types.DuplicateGroup `json:"groups"`
}

// Duplicates runs a duplicate search to completion and returns the groups.
// The connection stays open for the duration; progress is available on
// /sse/duplicates. A cancelled search is not an error: the response
// carries status "cancelled" and no groups.
func (h *Handler) Duplicates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req duplicatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	groups, err := h.search.FindDuplicates(r.Context(), dupes.Request{
		Roots: req.Roots,
		Options: dupes.Options{
			ByName:    req.Options.ByName,
			BySize:    req.Options.BySize,
			ByContent: req.Options.ByContent,
		},
	}, nil)

	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, duplicatesResponse{
			Status: types.StatusCompleted,
			Groups: groups,
		})
	case errors.Is(err, dupes.ErrCancelled):
		h.writeJSON(w, http.StatusOK, duplicatesResponse{
			Status: types.StatusCancelled,
			Groups: []types.DuplicateGroup{},
		})
	case errors.Is(err, dupes.ErrBusy):
		h.writeError(w, http.StatusConflict, "a search is already running")
	case errors.Is(err, dupes.ErrNoRoots), errors.Is(err, dupes.ErrNoCriteria):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// CancelDuplicates signals the active search to stop.
func (h *Handler) CancelDuplicates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	h.search.Cancel()
	h.writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// DuplicatesActive reports whether a search is running.
func (h *Handler) DuplicatesActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"active": h.search.Active()})
}
