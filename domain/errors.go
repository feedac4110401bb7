package domain

import "errors"

// ErrConcurrencyConflict indicates that the underlying storage rejected an
// update because a newer version of the entity is already persisted.
var ErrConcurrencyConflict = errors.New("concurrency conflict")

// ErrNotFound indicates the requested document does not exist. Callers treat
// it as "no data", not as a failure.
var ErrNotFound = errors.New("not found")

var (
	ErrTitleRequired   = errors.New("title is required")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidOrderBy  = errors.New("invalid order-by key")
	ErrDuplicateLabel  = errors.New("label already exists")
)
