package client

import (
	"errors"
	"fmt"
	"time"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 and 520 responses asking for backoff.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassParse represents a 2xx response whose body is not an integer.
	ErrorClassParse ErrorClass = "parse"
)

// FetchError describes why the attribute of one person could not be fetched.
type FetchError struct {
	PersonID   int64
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch person %d: %s error (status %d): %s: %v",
			e.PersonID, e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("fetch person %d: %s error (status %d): %s",
		e.PersonID, e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code, 0 when no response was received.
func (e *FetchError) Status() int { return e.StatusCode }

// Class returns the error class as a plain string.
func (e *FetchError) Class() string { return string(e.ErrorClass) }

// RateLimitedError is a FetchError whose response asked the caller to back off.
type RateLimitedError struct {
	*FetchError
	After time.Duration
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s (retry after %s)", e.FetchError.Error(), e.After)
}

// RetryAfter returns how long the service asked us to wait.
func (e *RateLimitedError) RetryAfter() time.Duration {
	return e.After
}

// Unwrap exposes the underlying FetchError.
func (e *RateLimitedError) Unwrap() error {
	return e.FetchError
}

// classOf extracts the ErrorClass of err, or "" if err is not a FetchError.
func classOf(err error) ErrorClass {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.ErrorClass
	}
	return ""
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx errors will not change on retry
		return false
	case ErrorClassServer:
		return true
	case ErrorClassRateLimit:
		// Handed to the shared backoff gate instead of retrying in place
		return false
	case ErrorClassNetwork:
		return true
	case ErrorClassParse:
		return false
	default:
		return false
	}
}
