package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rogerio-castellano/inventory-sync/internal/models"
)

type streamEvent struct {
	snapshot models.Snapshot
	err      error
}

// StreamHandler godoc
// @Summary Stream inventory snapshots
// @Description Server-sent events: a snapshot event for every installed snapshot, an error event when the feed fails
// @Tags items
// @Produce text/event-stream
// @Security BearerAuth
// @Param location path string true "Location ID"
// @Success 200 {string} string "event stream"
// @Router /locations/{location}/stream [get]
func (s *Server) StreamHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	t, ok := s.tracker(w, r)
	if !ok {
		return
	}

	// Only the latest event matters; a slow client skips intermediate ones.
	events := make(chan streamEvent, 1)
	remove := t.OnChange(func(snap models.Snapshot, err error) {
		ev := streamEvent{snapshot: snap, err: err}
		for {
			select {
			case events <- ev:
				return
			default:
			}
			select {
			case <-events:
			default:
			}
		}
	})
	defer remove()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "snapshot", t.Snapshot()); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			var err error
			if ev.err != nil {
				err = writeEvent(w, "error", map[string]string{"error": ev.err.Error()})
			} else {
				err = writeEvent(w, "snapshot", ev.snapshot)
			}
			if err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
	return err
}
