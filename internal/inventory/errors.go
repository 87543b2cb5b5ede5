package inventory

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidInput is returned for malformed names, quantities or thresholds.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStopped is returned when a stopped tracker is asked to do work.
	ErrStopped = errors.New("tracker stopped")
)

// ParseQuantity parses a caller supplied quantity.
func ParseQuantity(s string) (int, error) {
	return parseCount("quantity", s)
}

// ParseThreshold parses a caller supplied threshold.
func ParseThreshold(s string) (int, error) {
	return parseCount("threshold", s)
}

func parseCount(field, s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidInput, field)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: %s cannot be negative", ErrInvalidInput, field)
	}
	return v, nil
}

// ValidateName checks an identifier used as a document id: item names,
// location ids and owners.
func ValidateName(field, s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	if strings.Contains(s, "/") {
		return fmt.Errorf("%w: %s cannot contain '/'", ErrInvalidInput, field)
	}
	return nil
}

func validateCount(field string, v int) error {
	if v < 0 {
		return fmt.Errorf("%w: %s cannot be negative", ErrInvalidInput, field)
	}
	return nil
}
