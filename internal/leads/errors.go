package leads

import "errors"

var (
	// ErrNotFound is returned when no lead matches the given signals.
	ErrNotFound = errors.New("leads: lead not found")

	// ErrMissingContact is returned when a lookup has no usable signal.
	ErrMissingContact = errors.New("leads: phone, email or session key required")
)
