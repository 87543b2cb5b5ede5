package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListThresholdsHandler godoc
// @Summary List the caller's threshold registrations
// @Tags thresholds
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ThresholdsResult
// @Router /thresholds [get]
func (s *Server) ListThresholdsHandler(w http.ResponseWriter, r *http.Request) {
	regs, err := s.registry.ListFor(r.Context(), ownerFrom(r))
	if err != nil {
		s.writeError(w, r, "could not fetch thresholds", err)
		return
	}
	s.respond(w, r, http.StatusOK, ThresholdsResult{Data: regs})
}

// RegisterThresholdHandler godoc
// @Summary Monitor an item
// @Description Registers a low stock threshold for the caller. Registrations apply at every location where the caller is a recipient.
// @Tags thresholds
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param registration body ThresholdRequest true "Item and threshold"
// @Success 201 {object} models.ThresholdRegistration
// @Failure 400 {array} ValidationError
// @Failure 409 {string} string "Already monitored"
// @Router /thresholds [post]
func (s *Server) RegisterThresholdHandler(w http.ResponseWriter, r *http.Request) {
	var req ThresholdRequest
	if err := readJSON(w, r, &req); err != nil {
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}
	threshold, verrs := validateThreshold(req)
	if len(verrs) > 0 {
		s.respond(w, r, http.StatusBadRequest, verrs)
		return
	}

	reg, err := s.registry.Register(r.Context(), ownerFrom(r), req.ItemName, threshold)
	if err != nil {
		s.writeError(w, r, "could not register threshold", err)
		return
	}
	s.respond(w, r, http.StatusCreated, reg)
}

// UnregisterThresholdHandler godoc
// @Summary Stop monitoring an item
// @Tags thresholds
// @Security BearerAuth
// @Param name path string true "Item name"
// @Success 204
// @Failure 404 {string} string "Not found"
// @Router /thresholds/{name} [delete]
func (s *Server) UnregisterThresholdHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Unregister(r.Context(), ownerFrom(r), chi.URLParam(r, "name")); err != nil {
		s.writeError(w, r, "could not unregister threshold", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
