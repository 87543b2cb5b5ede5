package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rogerio-castellano/inventory-sync/internal/models"
)

// ListLocationsHandler godoc
// @Summary Sync status of every tracked location
// @Tags locations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} LocationsResult
// @Router /locations [get]
func (s *Server) ListLocationsHandler(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, LocationsResult{Data: s.hub.Statuses()})
}

// LocationStatusHandler godoc
// @Summary Sync status of a location
// @Tags locations
// @Produce json
// @Security BearerAuth
// @Param location path string true "Location ID"
// @Success 200 {object} inventory.Status
// @Router /locations/{location}/status [get]
func (s *Server) LocationStatusHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tracker(w, r)
	if !ok {
		return
	}
	s.respond(w, r, http.StatusOK, t.Status())
}

// RefreshLocationHandler godoc
// @Summary Re-read a location from the remote store
// @Tags locations
// @Produce json
// @Security BearerAuth
// @Param location path string true "Location ID"
// @Success 200 {object} inventory.Status
// @Failure 503 {string} string "Remote store unavailable"
// @Router /locations/{location}/refresh [post]
func (s *Server) RefreshLocationHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tracker(w, r)
	if !ok {
		return
	}
	if err := t.Refresh(r.Context()); err != nil {
		s.writeError(w, r, "could not refresh location", err)
		return
	}
	s.respond(w, r, http.StatusOK, t.Status())
}

// LocationSnapshotHandler godoc
// @Summary One-shot snapshot of a location
// @Description Reads the location directly from the remote store without starting a live tracker
// @Tags locations
// @Produce json
// @Security BearerAuth
// @Param location path string true "Location ID"
// @Success 200 {object} models.Snapshot
// @Failure 503 {string} string "Remote store unavailable"
// @Router /locations/{location}/snapshot [get]
func (s *Server) LocationSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.hub.Snapshot(r.Context(), chi.URLParam(r, "location"))
	if err != nil {
		s.writeError(w, r, "could not read location", err)
		return
	}
	s.respond(w, r, http.StatusOK, snapshot)
}

// AlertHistoryHandler godoc
// @Summary Recent alert deliveries for the caller
// @Tags alerts
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum entries (default 50)"
// @Success 200 {object} AlertHistoryResult
// @Router /alerts/history [get]
func (s *Server) AlertHistoryHandler(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := s.history.Recent(r.Context(), 0)
	if err != nil {
		s.writeError(w, r, "could not fetch alert history", err)
		return
	}

	owner := ownerFrom(r)
	result := AlertHistoryResult{Data: []models.AlertDelivery{}}
	for _, d := range entries {
		if d.Event.Owner != owner {
			continue
		}
		result.Data = append(result.Data, d)
		if len(result.Data) == limit {
			break
		}
	}
	s.respond(w, r, http.StatusOK, result)
}

// HealthHandler godoc
// @Summary Liveness probe
// @Tags health
// @Success 200 {string} string "ok"
// @Router /healthz [get]
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}
