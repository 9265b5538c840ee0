package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("entity already exists")

	// ErrStaleState is returned when a conditional update finds the entity
	// no longer in the expected state.
	ErrStaleState = errors.New("entity state changed")
)
