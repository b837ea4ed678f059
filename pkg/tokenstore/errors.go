package tokenstore

import "errors"

var (
	// ErrNotFound is returned when no token row matches the lookup
	ErrNotFound = errors.New("verification token not found")
)
