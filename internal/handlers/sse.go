package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/doppelfm/doppel/internal/types"
)

// DuplicatesSSE streams progress for duplicate searches as server-sent
// events. The stream covers every search the service runs while the
// connection is open; clients filter by run_id.
func (h *Handler) DuplicatesSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	updates := h.search.Subscribe()
	defer h.search.Unsubscribe(updates)

	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			h.sendProgress(w, flusher, update)
		}
	}
}

func (h *Handler) sendProgress(w http.ResponseWriter, flusher http.Flusher, progress *types.SearchProgress) {
	event := "progress"
	if progress.Status != types.StatusRunning {
		event = "complete"
	}

	data, err := json.Marshal(progress)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
