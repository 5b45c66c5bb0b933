package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested record or attachment does
	// not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrQueryFailed is returned when selecting records fails, for example
	// because of bad credentials or a malformed filter. A failed selection
	// aborts the whole run.
	ErrQueryFailed = errors.New("query failed")

	// ErrUpdateFailed is returned when the write-back of a result fails.
	ErrUpdateFailed = errors.New("update failed")

	// ErrDownloadFailed is returned when an attachment cannot be fetched.
	ErrDownloadFailed = errors.New("download failed")

	// ErrDeleteFailed is returned when a batch delete fails.
	ErrDeleteFailed = errors.New("delete failed")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrInvalidEntity is returned when a record read from the store cannot
	// be mapped to a valid work item.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrWorkItemNotFound indicates that the requested work item does not exist.
	ErrWorkItemNotFound = fmt.Errorf("%w: work item", ErrNotFound)

	// ErrAttachmentNotFound indicates that an attachment token resolves to nothing.
	ErrAttachmentNotFound = fmt.Errorf("%w: attachment", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "work_item", "attachment")
	Operation string // The operation that failed (e.g., "list", "complete")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
