package badger

import "errors"

var (
	// ErrBackendRequired is returned when a store is created without a backend.
	ErrBackendRequired = errors.New("badger backend required")
)
