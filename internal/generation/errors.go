package generation

import (
	"errors"
	"fmt"
)

// Common errors returned by the generation package
var (
	// ErrRetriesExhausted is returned when every attempt failed with a
	// retryable error.
	ErrRetriesExhausted = errors.New("inference retries exhausted")

	// ErrNonRetryable is returned when the endpoint answered with a status
	// that retrying cannot fix, such as an auth failure or a malformed request.
	ErrNonRetryable = errors.New("non-retryable inference failure")

	// ErrInvalidResponse is returned when a successful response cannot be parsed
	ErrInvalidResponse = errors.New("invalid response from inference endpoint")

	// ErrInvalidConfig is returned when the inference configuration is invalid
	ErrInvalidConfig = errors.New("invalid inference configuration")
)

// StatusError reports a non-200 HTTP status from the inference endpoint.
// Backends return it for every status so RetryPolicy can classify it.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("inference endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("inference endpoint returned status %d: %s", e.StatusCode, e.Body)
}

// IsRetryableStatus reports whether code signals transient overload.
func IsRetryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
