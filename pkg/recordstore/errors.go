package recordstore

import "errors"

var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicateID     = errors.New("record id already exists")
	ErrPersistence     = errors.New("failed to persist collection")
	ErrLoad            = errors.New("failed to load collection")
	ErrCorruptSnapshot = errors.New("collection snapshot is corrupt")
	ErrUnknownField    = errors.New("unknown field")
	ErrImmutableField  = errors.New("field is immutable")
	ErrInvalidPatch    = errors.New("patch does not fit record type")
	ErrInvalidRecord   = errors.New("record cannot be encoded")
	ErrInvalidSchema   = errors.New("invalid schema")
	ErrNilBackend      = errors.New("backend cannot be nil")
)
