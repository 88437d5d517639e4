package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
)

type retentionView struct {
	RetentionDays int `json:"retention_days"`
}

// Retention reads or updates how long search history is kept.
// The value lives in the settings table unless pinned by environment,
// in which case updates are rejected.
func (h *Handler) Retention(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.writeJSON(w, http.StatusOK, retentionView{RetentionDays: h.retentionDays()})
	case http.MethodPut:
		if h.cfg.RetentionDaysFromEnv {
			h.writeError(w, http.StatusConflict, "retention is set by environment and cannot be changed here")
			return
		}
		var req retentionView
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.RetentionDays < 1 {
			h.writeError(w, http.StatusBadRequest, "retention_days must be at least 1")
			return
		}
		if err := h.db.SetSetting("retention_days", strconv.Itoa(req.RetentionDays)); err != nil {
			h.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		h.writeJSON(w, http.StatusOK, req)
	default:
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) retentionDays() int {
	if h.cfg.RetentionDaysFromEnv {
		return h.cfg.RetentionDays
	}
	raw, err := h.db.GetSetting("retention_days")
	if err == nil && raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return h.cfg.RetentionDays
}
