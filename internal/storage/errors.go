package storage

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a requested run does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID is returned when saving under a run ID that already
	// exists. Recorded runs are immutable; re-running produces a new ID.
	ErrDuplicateID = errors.New("duplicate run id: recorded runs are immutable")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
