package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rogerio-castellano/inventory-sync/internal/models"
)

// UsersCollection holds the users known at a location and their contact
// details.
func UsersCollection(location string) string {
	return "locations/" + location + "/users"
}

type RecipientRepository struct {
	store DocumentStore
}

func NewRecipientRepository(store DocumentStore) *RecipientRepository {
	return &RecipientRepository{store: store}
}

func (r *RecipientRepository) Put(ctx context.Context, location string, rc models.Recipient) error {
	doc, err := json.Marshal(recipientDocument{PhoneNumber: rc.PhoneNumber, Email: rc.Email})
	if err != nil {
		return fmt.Errorf("failed to encode recipient: %w", err)
	}
	return r.store.Put(ctx, UsersCollection(location), rc.Owner, doc)
}

func (r *RecipientRepository) Get(ctx context.Context, location, owner string) (models.Recipient, error) {
	collection := UsersCollection(location)
	raw, err := r.store.Get(ctx, collection, owner)
	if err != nil {
		return models.Recipient{}, err
	}
	return decodeRecipient(collection, owner, raw)
}

// List returns every recipient of location ordered by owner.
func (r *RecipientRepository) List(ctx context.Context, location string) ([]models.Recipient, error) {
	collection := UsersCollection(location)
	docs, err := r.store.List(ctx, collection)
	if err != nil {
		return nil, err
	}

	recipients := make([]models.Recipient, 0, len(docs))
	for id, raw := range docs {
		rc, err := decodeRecipient(collection, id, raw)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, rc)
	}
	sort.Slice(recipients, func(i, j int) bool { return recipients[i].Owner < recipients[j].Owner })
	return recipients, nil
}
