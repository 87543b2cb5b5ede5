package handlers

import (
	"strings"

	"github.com/rogerio-castellano/inventory-sync/internal/inventory"
)

type ValidationError struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

func describe(err error) string {
	return strings.TrimPrefix(err.Error(), inventory.ErrInvalidInput.Error()+": ")
}

func validateQuantity(req QuantityRequest) (int, []ValidationError) {
	q, err := inventory.ParseQuantity(req.Quantity.String())
	if err != nil {
		return 0, []ValidationError{{Field: "quantity", Description: describe(err)}}
	}
	return q, nil
}

func validateThreshold(req ThresholdRequest) (int, []ValidationError) {
	errs := []ValidationError{}
	if err := inventory.ValidateName("item name", req.ItemName); err != nil {
		errs = append(errs, ValidationError{Field: "itemName", Description: describe(err)})
	}
	t, err := inventory.ParseThreshold(req.Threshold.String())
	if err != nil {
		errs = append(errs, ValidationError{Field: "threshold", Description: describe(err)})
	}
	return t, errs
}

func validateRecipient(req RecipientRequest) []ValidationError {
	errs := []ValidationError{}
	phone := strings.TrimSpace(req.PhoneNumber)
	for _, r := range phone {
		if !strings.ContainsRune("0123456789+-() ", r) {
			errs = append(errs, ValidationError{Field: "phoneNumber", Description: "phone number contains invalid characters"})
			break
		}
	}
	if email := strings.TrimSpace(req.Email); email != "" && !strings.Contains(email, "@") {
		errs = append(errs, ValidationError{Field: "email", Description: "email is invalid"})
	}
	return errs
}
