package repo

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rogerio-castellano/inventory-sync/internal/models"
)

type itemDocument struct {
	ItemName   *string `json:"itemName"`
	Quantity   *int    `json:"quantity"`
	Date       string  `json:"date"`
	LocationID string  `json:"locationId"`
}

type thresholdDocument struct {
	Threshold *int `json:"threshold"`
}

type recipientDocument struct {
	PhoneNumber string `json:"phoneNumber"`
	Email       string `json:"email"`
}

func invalid(collection, id, reason string) error {
	return fmt.Errorf("%w: %s/%s: %s", ErrInvalidDocument, collection, id, reason)
}

func decodeStrict(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after document")
	}
	return nil
}

// decodeItem validates an inventory document. The document id is the item
// name; a stored itemName that disagrees with it is rejected.
func decodeItem(collection, id string, raw []byte, location string) (models.Item, error) {
	var doc itemDocument
	if err := decodeStrict(raw, &doc); err != nil {
		return models.Item{}, invalid(collection, id, err.Error())
	}
	if doc.ItemName != nil && *doc.ItemName != id {
		return models.Item{}, invalid(collection, id, fmt.Sprintf("itemName %q does not match document id", *doc.ItemName))
	}
	if doc.Quantity == nil {
		return models.Item{}, invalid(collection, id, "quantity is required")
	}
	if *doc.Quantity < 0 {
		return models.Item{}, invalid(collection, id, "quantity cannot be negative")
	}

	loc := doc.LocationID
	if loc == "" {
		loc = location
	}
	return models.Item{
		Name:       id,
		Quantity:   *doc.Quantity,
		Date:       doc.Date,
		LocationID: loc,
	}, nil
}

func decodeThreshold(collection, owner, id string, raw []byte) (models.ThresholdRegistration, error) {
	var doc thresholdDocument
	if err := decodeStrict(raw, &doc); err != nil {
		return models.ThresholdRegistration{}, invalid(collection, id, err.Error())
	}
	if doc.Threshold == nil {
		return models.ThresholdRegistration{}, invalid(collection, id, "threshold is required")
	}
	if *doc.Threshold < 0 {
		return models.ThresholdRegistration{}, invalid(collection, id, "threshold cannot be negative")
	}
	return models.ThresholdRegistration{Owner: owner, ItemKey: id, Threshold: *doc.Threshold}, nil
}

func decodeRecipient(collection, id string, raw []byte) (models.Recipient, error) {
	var doc recipientDocument
	if err := decodeStrict(raw, &doc); err != nil {
		return models.Recipient{}, invalid(collection, id, err.Error())
	}
	return models.Recipient{Owner: id, PhoneNumber: doc.PhoneNumber, Email: doc.Email}, nil
}
