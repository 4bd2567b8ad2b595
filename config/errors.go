package config

import "errors"

var (
	// ErrInvalidConfig is wrapped by every validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownBackend is returned for a backend other than badger or redis.
	ErrUnknownBackend = errors.New("unknown backend")
)
