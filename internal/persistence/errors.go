package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique constraint would be violated.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrForeignKeyViolation is returned when a referenced record does not exist.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrConstraintViolation is returned when a stored invariant would be
	// violated, such as an entry interval with End <= Start.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrIntervalExcluded is returned by stores that enforce a storage-level
	// exclusion constraint when an insert would overlap an existing
	// commitment for the same resource.
	ErrIntervalExcluded = errors.New("persistence: overlapping interval excluded")
)
