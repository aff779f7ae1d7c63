package dao

import "errors"

// Sentinel errors shared by every store; match them with errors.Is.
var (
	// ErrNotFound is returned when the entity does not exist or expired
	ErrNotFound = errors.New("dao: not found")

	// ErrInvalidID indicates an empty key
	ErrInvalidID = errors.New("dao: invalid id")

	// ErrNilEntity is returned when saving a nil pointer
	ErrNilEntity = errors.New("dao: nil entity")
)
