package history

import "errors"

var (
	ErrStoreRequired      = errors.New("store is required")
	ErrInvalidDimension   = errors.New("dimension must be positive")
	ErrInvalidTTL         = errors.New("ttl cannot be negative")
	ErrSchemaNameMismatch = errors.New("schema name does not match store")
)
