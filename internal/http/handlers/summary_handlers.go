package handlers

import (
	"net/http"

	"github.com/rogerio-castellano/inventory-sync/internal/alert"
)

// SummaryHandler godoc
// @Summary Inventory summary of a location for the caller
// @Description Totals plus the items at or below the caller's thresholds
// @Tags items
// @Produce json
// @Security BearerAuth
// @Param location path string true "Location ID"
// @Success 200 {object} SummaryResponse
// @Router /locations/{location}/summary [get]
func (s *Server) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tracker(w, r)
	if !ok {
		return
	}

	regs, err := s.registry.ListFor(r.Context(), ownerFrom(r))
	if err != nil {
		s.writeError(w, r, "could not fetch thresholds", err)
		return
	}

	snapshot := t.Snapshot()
	resp := SummaryResponse{
		Location:   snapshot.Location,
		Version:    snapshot.Version,
		TotalItems: len(snapshot.Items),
		LowStock:   []LowStockItem{},
	}
	for _, it := range snapshot.Items {
		resp.TotalQuantity += it.Quantity
	}
	for _, ev := range alert.Evaluate(snapshot, regs, "") {
		resp.LowStock = append(resp.LowStock, LowStockItem{ItemName: ev.ItemKey, Quantity: ev.Quantity, Threshold: ev.Threshold})
	}

	s.respond(w, r, http.StatusOK, resp)
}
