package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rogerio-castellano/inventory-sync/internal/inventory"
)

func (s *Server) tracker(w http.ResponseWriter, r *http.Request) (*inventory.Tracker, bool) {
	t, err := s.hub.Tracker(r.Context(), chi.URLParam(r, "location"))
	if err != nil {
		s.writeError(w, r, "could not open location", err)
		return nil, false
	}
	return t, true
}

// ListItemsHandler godoc
// @Summary List the items of a location
// @Description Sorted and filtered view of the local inventory cache
// @Tags items
// @Produce json
// @Security BearerAuth
// @Param location path string true "Location ID"
// @Param sort query string false "Sort criterion (name|quantity|date)"
// @Param order query string false "Sort order (asc|desc), defaults to desc"
// @Param q query string false "Case-insensitive name filter"
// @Success 200 {object} ItemsSearchResult
// @Failure 400 {string} string "Invalid query"
// @Router /locations/{location}/items [get]
func (s *Server) ListItemsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	key, err := inventory.ParseSortKey(query.Get("sort"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	descending := true
	switch strings.ToLower(query.Get("order")) {
	case "", "desc":
	case "asc":
		descending = false
	default:
		http.Error(w, "invalid order: must be asc or desc", http.StatusBadRequest)
		return
	}

	t, ok := s.tracker(w, r)
	if !ok {
		return
	}

	snapshot := t.Snapshot()
	items := inventory.View(snapshot.Items, key, descending, query.Get("q"))
	s.respond(w, r, http.StatusOK, ItemsSearchResult{
		Data: items,
		Meta: Meta{TotalCount: len(items), Version: snapshot.Version},
	})
}

// GetItemHandler godoc
// @Summary Get an item by name
// @Tags items
// @Produce json
// @Security BearerAuth
// @Param location path string true "Location ID"
// @Param name path string true "Item name"
// @Success 200 {object} models.Item
// @Failure 404 {string} string "Not found"
// @Router /locations/{location}/items/{name} [get]
func (s *Server) GetItemHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tracker(w, r)
	if !ok {
		return
	}

	name := chi.URLParam(r, "name")
	item, found := t.Lookup(name)
	if !found {
		http.Error(w, fmt.Sprintf("item %q not found", name), http.StatusNotFound)
		return
	}
	s.respond(w, r, http.StatusOK, item)
}

// PutItemHandler godoc
// @Summary Add or overwrite an item
// @Description The item is written to the remote store with today's date. The cache picks it up from the subscription.
// @Tags items
// @Accept json
// @Security BearerAuth
// @Param location path string true "Location ID"
// @Param name path string true "Item name"
// @Param item body QuantityRequest true "Quantity"
// @Success 202
// @Failure 400 {array} ValidationError
// @Router /locations/{location}/items/{name} [put]
func (s *Server) PutItemHandler(w http.ResponseWriter, r *http.Request) {
	var req QuantityRequest
	if err := readJSON(w, r, &req); err != nil {
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}
	quantity, verrs := validateQuantity(req)
	if len(verrs) > 0 {
		s.respond(w, r, http.StatusBadRequest, verrs)
		return
	}

	t, ok := s.tracker(w, r)
	if !ok {
		return
	}
	if err := t.Put(r.Context(), chi.URLParam(r, "name"), quantity); err != nil {
		s.writeError(w, r, "could not save item", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// UpdateQuantityHandler godoc
// @Summary Update the quantity of an existing item
// @Tags items
// @Accept json
// @Security BearerAuth
// @Param location path string true "Location ID"
// @Param name path string true "Item name"
// @Param item body QuantityRequest true "Quantity"
// @Success 202
// @Failure 400 {array} ValidationError
// @Failure 404 {string} string "Not found"
// @Router /locations/{location}/items/{name} [patch]
func (s *Server) UpdateQuantityHandler(w http.ResponseWriter, r *http.Request) {
	var req QuantityRequest
	if err := readJSON(w, r, &req); err != nil {
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}
	quantity, verrs := validateQuantity(req)
	if len(verrs) > 0 {
		s.respond(w, r, http.StatusBadRequest, verrs)
		return
	}

	t, ok := s.tracker(w, r)
	if !ok {
		return
	}
	if err := t.UpdateQuantity(r.Context(), chi.URLParam(r, "name"), quantity); err != nil {
		s.writeError(w, r, "could not update item", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// DeleteItemHandler godoc
// @Summary Delete an item
// @Tags items
// @Security BearerAuth
// @Param location path string true "Location ID"
// @Param name path string true "Item name"
// @Success 204
// @Failure 404 {string} string "Not found"
// @Router /locations/{location}/items/{name} [delete]
func (s *Server) DeleteItemHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tracker(w, r)
	if !ok {
		return
	}
	if err := t.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.writeError(w, r, "could not delete item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
