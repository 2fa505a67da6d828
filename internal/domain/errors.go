package domain

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when input fails domain validation.
	ErrValidation = errors.New("validation error")
)
