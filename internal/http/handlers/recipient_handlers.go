package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rogerio-castellano/inventory-sync/internal/inventory"
	"github.com/rogerio-castellano/inventory-sync/internal/models"
)

// PutRecipientHandler godoc
// @Summary Set the caller's contact details at a location
// @Description Alerts for the caller's thresholds at this location go to the phone number. An empty phone number disables them.
// @Tags recipients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param location path string true "Location ID"
// @Param recipient body RecipientRequest true "Contact details"
// @Success 200 {object} models.Recipient
// @Failure 400 {array} ValidationError
// @Router /locations/{location}/recipient [put]
func (s *Server) PutRecipientHandler(w http.ResponseWriter, r *http.Request) {
	var req RecipientRequest
	if err := readJSON(w, r, &req); err != nil {
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}
	if verrs := validateRecipient(req); len(verrs) > 0 {
		s.respond(w, r, http.StatusBadRequest, verrs)
		return
	}

	location := chi.URLParam(r, "location")
	if err := inventory.ValidateName("location", location); err != nil {
		s.writeError(w, r, "invalid location", err)
		return
	}

	rc := models.Recipient{
		Owner:       ownerFrom(r),
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Email:       strings.TrimSpace(req.Email),
	}
	if err := s.recipients.Put(r.Context(), location, rc); err != nil {
		s.writeError(w, r, "could not save recipient", err)
		return
	}
	s.respond(w, r, http.StatusOK, rc)
}

// GetRecipientHandler godoc
// @Summary Get the caller's contact details at a location
// @Tags recipients
// @Produce json
// @Security BearerAuth
// @Param location path string true "Location ID"
// @Success 200 {object} models.Recipient
// @Failure 404 {string} string "Not found"
// @Router /locations/{location}/recipient [get]
func (s *Server) GetRecipientHandler(w http.ResponseWriter, r *http.Request) {
	location := chi.URLParam(r, "location")
	if err := inventory.ValidateName("location", location); err != nil {
		s.writeError(w, r, "invalid location", err)
		return
	}

	rc, err := s.recipients.Get(r.Context(), location, ownerFrom(r))
	if err != nil {
		s.writeError(w, r, "could not fetch recipient", err)
		return
	}
	s.respond(w, r, http.StatusOK, rc)
}
