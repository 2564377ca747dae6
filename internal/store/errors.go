// Package store provides abstractions and implementations for data persistence.
package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in
	// the store. This is the generic version of the entity-specific not
	// found errors.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when an update operation fails, for
	// example because the entity does not exist.
	ErrUpdateFailed = errors.New("update failed")

	// Entity-specific "not found" errors

	// ErrTopicNotFound indicates that the requested topic does not exist.
	ErrTopicNotFound = fmt.Errorf("%w: topic", ErrNotFound)

	// ErrTaskNotFound indicates that no generation task exists for the
	// requested triple or ID.
	ErrTaskNotFound = fmt.Errorf("%w: generation task", ErrNotFound)

	// ErrNotesNotFound indicates that the topic has no notes artifact.
	ErrNotesNotFound = fmt.Errorf("%w: notes", ErrNotFound)

	// ErrMindmapNotFound indicates that the topic has no mindmap artifact.
	ErrMindmapNotFound = fmt.Errorf("%w: mindmap", ErrNotFound)

	// ErrProfileNotFound indicates that the user has no usage profile.
	ErrProfileNotFound = fmt.Errorf("%w: usage profile", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
