// Package errors provides the strategies a worker applies to a failed work item
package errors

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jzx17/imgqueue/pkg/types"
)

// ErrorHandler decides what a per-item failure means for the run
type ErrorHandler interface {
	// HandleError returns nil when the failure has been absorbed and the worker
	// should move on, or a non-nil error that aborts the run
	HandleError(ctx context.Context, errCtx *ErrorContext) error

	// Name returns the name of the error handler
	Name() string

	// CanHandle determines if it can handle specific type of error
	CanHandle(err error) bool
}

// ErrorContext describes a failed work item
type ErrorContext struct {
	// Error that occurred
	Error error

	// OperationName is the name of the operation where error occurred
	OperationName string

	// Item is the work item that failed
	Item types.WorkItem

	// WorkerID identifies the worker that processed the item
	WorkerID int

	// Attempts is the number of attempts made, first one included
	Attempts int

	// Timestamp when the error occurred
	Timestamp time.Time

	// Metadata contains additional metadata information
	Metadata map[string]interface{}
}

// NewErrorContext creates a new error context
func NewErrorContext(err error, operationName string, item types.WorkItem) *ErrorContext {
	return &ErrorContext{
		Error:         err,
		OperationName: operationName,
		Item:          item,
		Attempts:      1,
		Timestamp:     time.Now(),
		Metadata:      make(map[string]interface{}),
	}
}

// Reason returns the failure classification of the wrapped error
func (ec *ErrorContext) Reason() types.FailureReason {
	return types.ReasonOf(ec.Error)
}

// attrs renders the context as log attributes
func (ec *ErrorContext) attrs() []any {
	attrs := []any{
		slog.String("operation", ec.OperationName),
		slog.String("source", ec.Item.Source),
		slog.String("destination", ec.Item.Destination),
		slog.Int("worker_id", ec.WorkerID),
		slog.String("reason", ec.Reason().String()),
		slog.String("error", fmt.Sprint(ec.Error)),
	}
	if ec.Attempts > 1 {
		attrs = append(attrs, slog.Int("attempts", ec.Attempts))
	}
	return attrs
}

// ErrorHandlerStrategy defines error handling strategy types
type ErrorHandlerStrategy int

const (
	// ContinueOnErrorStrategy logs the failure and drops the item
	ContinueOnErrorStrategy ErrorHandlerStrategy = iota
	// FailFastStrategy aborts the run on the first failure
	FailFastStrategy
)

// String returns the string representation of the strategy
func (s ErrorHandlerStrategy) String() string {
	switch s {
	case FailFastStrategy:
		return "FailFast"
	case ContinueOnErrorStrategy:
		return "ContinueOnError"
	default:
		return "Unknown"
	}
}

// ParseStrategy accepts "continue" or "fail-fast" in any case, and the String forms
func ParseStrategy(s string) (ErrorHandlerStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "continue", "continue-on-error", "continueonerror":
		return ContinueOnErrorStrategy, nil
	case "fail-fast", "failfast":
		return FailFastStrategy, nil
	default:
		return ContinueOnErrorStrategy, fmt.Errorf("unknown error strategy %q: %w", s, types.ErrInvalidInput)
	}
}

// NewHandler builds the handler for a strategy. Under FailFastStrategy a
// non-empty absorb list keeps failures with those reasons non-fatal; every
// other reason still aborts the run. ContinueOnErrorStrategy absorbs all.
func NewHandler(strategy ErrorHandlerStrategy, logger *slog.Logger, absorb ...types.FailureReason) ErrorHandler {
	if strategy != FailFastStrategy {
		return NewContinueOnErrorHandler(&ContinueOnErrorConfig{Logger: logger})
	}
	if len(absorb) == 0 {
		return NewFailFastHandler(logger)
	}
	return NewContinueOnErrorHandler(&ContinueOnErrorConfig{Logger: logger, IgnoredReasons: absorb})
}

// FailFastHandler implements fail-fast error handling
type FailFastHandler struct {
	name   string
	logger *slog.Logger
}

// NewFailFastHandler creates a new fail-fast handler
func NewFailFastHandler(logger *slog.Logger) *FailFastHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FailFastHandler{
		name:   "FailFast",
		logger: logger,
	}
}

// HandleError logs the failure and returns it so the run aborts
func (h *FailFastHandler) HandleError(ctx context.Context, errCtx *ErrorContext) error {
	h.logger.ErrorContext(ctx, "item failed, aborting run", errCtx.attrs()...)
	return fmt.Errorf("%s %s: %w", errCtx.OperationName, errCtx.Item.Source, errCtx.Error)
}

// Name returns the handler name
func (h *FailFastHandler) Name() string {
	return h.name
}

// CanHandle checks if it can handle errors (fail-fast handler can handle all errors)
func (h *FailFastHandler) CanHandle(err error) bool {
	return true
}

// ContinueOnErrorHandler logs failures and lets the worker continue
type ContinueOnErrorHandler struct {
	name           string
	logger         *slog.Logger
	ignoredReasons map[types.FailureReason]bool
}

// ContinueOnErrorConfig contains configuration for continue-on-error handler
type ContinueOnErrorConfig struct {
	// IgnoredReasons limits which failures are absorbed. Empty means all of them;
	// otherwise a failure with any other reason is returned as fatal.
	IgnoredReasons []types.FailureReason
	// Logger receives one warning per absorbed failure
	Logger *slog.Logger
}

// NewContinueOnErrorHandler creates a continue-on-error handler
func NewContinueOnErrorHandler(config *ContinueOnErrorConfig) *ContinueOnErrorHandler {
	handler := &ContinueOnErrorHandler{
		name:           "ContinueOnError",
		logger:         slog.New(slog.DiscardHandler),
		ignoredReasons: make(map[types.FailureReason]bool),
	}

	if config != nil {
		if config.Logger != nil {
			handler.logger = config.Logger
		}
		for _, reason := range config.IgnoredReasons {
			handler.ignoredReasons[reason] = true
		}
	}

	return handler
}

// HandleError implements the ErrorHandler interface
func (h *ContinueOnErrorHandler) HandleError(ctx context.Context, errCtx *ErrorContext) error {
	if !h.CanHandle(errCtx.Error) {
		h.logger.ErrorContext(ctx, "item failed with unabsorbed reason", errCtx.attrs()...)
		return errCtx.Error
	}

	h.logger.WarnContext(ctx, "item failed", errCtx.attrs()...)
	return nil
}

// Name returns the handler name
func (h *ContinueOnErrorHandler) Name() string {
	return h.name
}

// CanHandle checks if it can handle the error
func (h *ContinueOnErrorHandler) CanHandle(err error) bool {
	if len(h.ignoredReasons) == 0 {
		return true
	}
	return h.ignoredReasons[types.ReasonOf(err)]
}
