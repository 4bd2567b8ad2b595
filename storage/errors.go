package storage

import "errors"

// Errors returned by Store implementations. Adapters wrap them with the
// backend's own error so callers can match with errors.Is.
var (
	ErrNotFound            = errors.New("chat document not found")
	ErrSchemaNotFound      = errors.New("schema not found")
	ErrInvalidSchema       = errors.New("invalid schema definition")
	ErrStorageClosed       = errors.New("store is closed")
	ErrInvalidQuery        = errors.New("invalid filter or search request")
	ErrSerializationFailed = errors.New("chat document encoding failed")
)
