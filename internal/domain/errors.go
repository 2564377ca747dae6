// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidArtifactKind is returned when an artifact kind is not recognized.
	ErrInvalidArtifactKind = errors.New("invalid artifact kind")

	// ErrInvalidTaskStatus is returned when a generation task status is not valid.
	ErrInvalidTaskStatus = errors.New("invalid task status")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")
)
