package local

import "errors"

var (
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidName is returned for collection or document names that would
	// escape the store directory
	ErrInvalidName = errors.New("invalid document name")
)
