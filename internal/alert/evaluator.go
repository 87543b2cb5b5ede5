package alert

import (
	"time"

	"github.com/google/uuid"
	"github.com/rogerio-castellano/inventory-sync/internal/models"
)

// Evaluate returns one alert for every registration whose item is present in
// the snapshot at or below its threshold. Registrations for items missing
// from the snapshot are skipped. Evaluate keeps no state: an item that stays
// low produces an alert on every snapshot.
func Evaluate(snapshot models.Snapshot, registrations []models.ThresholdRegistration, destination string) []models.AlertEvent {
	if len(registrations) == 0 {
		return nil
	}

	quantities := make(map[string]int, len(snapshot.Items))
	for _, it := range snapshot.Items {
		quantities[it.Name] = it.Quantity
	}

	raisedAt := snapshot.ReceivedAt
	if raisedAt.IsZero() {
		raisedAt = time.Now()
	}

	var events []models.AlertEvent
	for _, reg := range registrations {
		qty, ok := quantities[reg.ItemKey]
		if !ok || qty > reg.Threshold {
			continue
		}
		events = append(events, models.AlertEvent{
			ID:          uuid.NewString(),
			Location:    snapshot.Location,
			Owner:       reg.Owner,
			ItemKey:     reg.ItemKey,
			Quantity:    qty,
			Threshold:   reg.Threshold,
			Destination: destination,
			RaisedAt:    raisedAt,
		})
	}
	return events
}
