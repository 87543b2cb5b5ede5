package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rogerio-castellano/inventory-sync/internal/models"
)

// NotificationsCollection is the collection of an owner's threshold
// registrations, keyed by item name.
func NotificationsCollection(owner string) string {
	return "users/" + owner + "/notifications"
}

type ThresholdRepository struct {
	store DocumentStore
}

func NewThresholdRepository(store DocumentStore) *ThresholdRepository {
	return &ThresholdRepository{store: store}
}

// Create stores a registration, failing with ErrAlreadyExists if the owner
// already monitors the item.
func (r *ThresholdRepository) Create(ctx context.Context, reg models.ThresholdRegistration) error {
	doc, err := json.Marshal(map[string]int{"threshold": reg.Threshold})
	if err != nil {
		return fmt.Errorf("failed to encode registration: %w", err)
	}
	return r.store.Create(ctx, NotificationsCollection(reg.Owner), reg.ItemKey, doc)
}

func (r *ThresholdRepository) Delete(ctx context.Context, owner, itemKey string) error {
	return r.store.Delete(ctx, NotificationsCollection(owner), itemKey)
}

// List returns the owner's registrations ordered by item name.
func (r *ThresholdRepository) List(ctx context.Context, owner string) ([]models.ThresholdRegistration, error) {
	collection := NotificationsCollection(owner)
	docs, err := r.store.List(ctx, collection)
	if err != nil {
		return nil, err
	}

	regs := make([]models.ThresholdRegistration, 0, len(docs))
	for id, raw := range docs {
		reg, err := decodeThreshold(collection, owner, id, raw)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].ItemKey < regs[j].ItemKey })
	return regs, nil
}
