package repo

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned by Create when the document id is taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnavailable wraps every failure to reach the remote store.
	ErrUnavailable = errors.New("remote store unavailable")
	// ErrInvalidDocument is returned when a stored document does not match its schema.
	ErrInvalidDocument = errors.New("invalid document")
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
