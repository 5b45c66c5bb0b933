// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when a record identifier is missing or malformed.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidItemStatus is returned when a work item status is not valid.
	ErrInvalidItemStatus = errors.New("invalid work item status")

	// ErrIllegalTransition is returned when a status change other than
	// Pending -> Done is attempted.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrEmptyResult is returned when a result text is required but empty.
	ErrEmptyResult = errors.New("result text cannot be empty")
)
