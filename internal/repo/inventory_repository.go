package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rogerio-castellano/inventory-sync/internal/models"
)

// InventoryCollection is the collection holding the items of a location.
func InventoryCollection(location string) string {
	return "locations/" + location + "/inventory"
}

// InventoryRepository reads and writes items of any location through a
// DocumentStore. Writes become visible to readers only through Subscribe.
type InventoryRepository struct {
	store DocumentStore
	now   func() time.Time
}

func NewInventoryRepository(store DocumentStore) *InventoryRepository {
	return &InventoryRepository{store: store, now: time.Now}
}

// SetClock replaces the clock used for item dates and snapshot times.
func (r *InventoryRepository) SetClock(now func() time.Time) {
	r.now = now
}

// Get fetches a one-shot snapshot of a location.
func (r *InventoryRepository) Get(ctx context.Context, location string) (models.Snapshot, error) {
	docs, err := r.store.List(ctx, InventoryCollection(location))
	if err != nil {
		return models.Snapshot{}, err
	}
	return r.decodeSnapshot(location, docs)
}

// Put writes item, replacing any item with the same name. An empty date is
// set to today.
func (r *InventoryRepository) Put(ctx context.Context, location string, item models.Item) error {
	item.LocationID = location
	if item.Date == "" {
		item.Date = models.Today(r.now())
	}
	doc, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode item: %w", err)
	}
	return r.store.Put(ctx, InventoryCollection(location), item.Name, doc)
}

// UpdateQuantity changes only the quantity and date of an existing item.
func (r *InventoryRepository) UpdateQuantity(ctx context.Context, location, name string, quantity int) error {
	return r.store.Merge(ctx, InventoryCollection(location), name, map[string]any{
		"quantity": quantity,
		"date":     models.Today(r.now()),
	})
}

func (r *InventoryRepository) Delete(ctx context.Context, location, name string) error {
	return r.store.Delete(ctx, InventoryCollection(location), name)
}

// Subscribe delivers a decoded snapshot of location after every change. A
// collection holding an invalid document is reported as an error instead of
// a partial snapshot.
func (r *InventoryRepository) Subscribe(ctx context.Context, location string, fn func(models.Snapshot, error)) (Subscription, error) {
	return r.store.Subscribe(ctx, InventoryCollection(location), func(docs Documents, err error) {
		if err != nil {
			fn(models.Snapshot{}, err)
			return
		}
		fn(r.decodeSnapshot(location, docs))
	})
}

func (r *InventoryRepository) decodeSnapshot(location string, docs Documents) (models.Snapshot, error) {
	collection := InventoryCollection(location)
	items := make([]models.Item, 0, len(docs))
	for id, raw := range docs {
		item, err := decodeItem(collection, id, raw, location)
		if err != nil {
			return models.Snapshot{}, err
		}
		items = append(items, item)
	}
	return models.Snapshot{Location: location, Items: items, ReceivedAt: r.now()}, nil
}
