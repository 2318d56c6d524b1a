// Package types defines error types
package types

import (
	"errors"
	"fmt"
	"time"
)

// Predefined errors
var (
	// ErrInvalidInput indicates invalid input
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyStarted indicates a component was started twice
	ErrAlreadyStarted = errors.New("already started")

	// ErrSelfJoin indicates a task tried to wait for its own completion
	ErrSelfJoin = errors.New("task cannot wait for itself")

	// ErrProducerCountLocked indicates SetProducerCount was called after the count
	// was established or after producers began signalling completion
	ErrProducerCountLocked = errors.New("producer count already established")

	// ErrNoActiveProducers indicates ProducerFinished was called more times than
	// producers were registered
	ErrNoActiveProducers = errors.New("no active producers")
)

// FailureReason classifies a per-item failure
type FailureReason int

const (
	// ReasonUnknown is an unclassified failure
	ReasonUnknown FailureReason = iota
	// ReasonMapping means no destination path could be derived
	ReasonMapping
	// ReasonDecode means the source could not be read as an image
	ReasonDecode
	// ReasonEncode means the result could not be encoded
	ReasonEncode
	// ReasonIO means a filesystem operation failed
	ReasonIO
	// ReasonUnsupported means the destination format is not supported
	ReasonUnsupported
	// ReasonPanic means the transform panicked
	ReasonPanic
)

// String returns the string representation of FailureReason
func (r FailureReason) String() string {
	switch r {
	case ReasonMapping:
		return "mapping"
	case ReasonDecode:
		return "decode"
	case ReasonEncode:
		return "encode"
	case ReasonIO:
		return "io"
	case ReasonUnsupported:
		return "unsupported"
	case ReasonPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// ParseFailureReason maps a reason name, as printed by String, back to its value
func ParseFailureReason(s string) (FailureReason, error) {
	for r := ReasonUnknown; r <= ReasonPanic; r++ {
		if r.String() == s {
			return r, nil
		}
	}
	return ReasonUnknown, fmt.Errorf("unknown failure reason %q: %w", s, ErrInvalidInput)
}

// ItemError represents a recoverable failure on a single work item
type ItemError struct {
	// Operation is the name of the operation where the error occurred
	Operation string

	// Path is the file the failure relates to
	Path string

	// Reason classifies the failure
	Reason FailureReason

	// Cause is the underlying error
	Cause error

	// Context contains error context information
	Context map[string]interface{}
}

// Error implements the error interface
func (e *ItemError) Error() string {
	return fmt.Sprintf("%s %s (%s): %v", e.Operation, e.Path, e.Reason, e.Cause)
}

// Unwrap returns the underlying error
func (e *ItemError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether repeating the operation may succeed.
// Only filesystem failures qualify; a file that does not decode never will.
func (e *ItemError) Retryable() bool {
	return e.Reason == ReasonIO
}

// NewItemError creates a new item error
func NewItemError(operation, path string, reason FailureReason, cause error) *ItemError {
	return &ItemError{
		Operation: operation,
		Path:      path,
		Reason:    reason,
		Cause:     cause,
		Context:   make(map[string]interface{}),
	}
}

// WithContext adds error context
func (e *ItemError) WithContext(key string, value interface{}) *ItemError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// ReasonOf extracts the failure reason from err, or ReasonUnknown
func ReasonOf(err error) FailureReason {
	var itemErr *ItemError
	if errors.As(err, &itemErr) {
		return itemErr.Reason
	}
	return ReasonUnknown
}

// RetryableError represents a retryable error
type RetryableError struct {
	// Err is the underlying error
	Err error

	// Retryable indicates whether the error is retryable
	Retryable bool

	// RetryAfter is the suggested retry delay
	RetryAfter time.Duration
}

// Error implements the error interface
func (e *RetryableError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}
	var itemErr *ItemError
	if errors.As(err, &itemErr) {
		return itemErr.Retryable()
	}
	return false
}

// GetRetryDelay returns the suggested retry delay
func GetRetryDelay(err error) time.Duration {
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.RetryAfter
	}
	return 0
}
