package service

import "errors"

// Sentinel kinds for service errors. Terminal errors surface to the caller
// as-is; the service never substitutes a default count or score on failure.
var (
	// ErrRoundNotFound is returned when the referenced round does not exist.
	ErrRoundNotFound = errors.New("round not found")

	// ErrRoundNotActive is returned when a tap lands outside the round's
	// active window.
	ErrRoundNotActive = errors.New("round is not active")

	// ErrInvalidCredentials is returned when a known username is presented
	// with the wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
