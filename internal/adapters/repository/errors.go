package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	// ErrNotFound marks a missing row.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a uniqueness conflict, e.g. losing an insert race.
	// Increment retries exactly once on it before surfacing the error.
	ErrConflict = errors.New("storage conflict")
)
