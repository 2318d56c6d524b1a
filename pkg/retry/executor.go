// Package retry provides retry executor implementation
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jzx17/imgqueue/pkg/types"
)

// RetryExecutor runs operations under a RetryPolicy. It is safe for concurrent
// use; one executor is shared by all workers of a pool.
type RetryExecutor struct {
	policy RetryPolicy
	clock  types.Clock
	logger *slog.Logger

	mu    sync.Mutex
	stats RetryStats
}

// ExecuteFunc is the function type to retry
type ExecuteFunc func(ctx context.Context) error

// RetryStats contains retry statistics
type RetryStats struct {
	TotalAttempts   int64         // total attempt count
	TotalRetries    int64         // operations that needed more than one attempt
	TotalSuccesses  int64         // total success count
	TotalFailures   int64         // total failure count
	LastRetryTime   time.Time     // last retry time
	TotalRetryDelay time.Duration // total retry delay time
}

// AverageAttempts returns attempts per finished operation
func (s RetryStats) AverageAttempts() float64 {
	ops := s.TotalSuccesses + s.TotalFailures
	if ops == 0 {
		return 0
	}
	return float64(s.TotalAttempts) / float64(ops)
}

// NewRetryExecutor creates a retry executor. A nil policy means NoRetry.
func NewRetryExecutor(policy RetryPolicy, opts ...ExecutorOption) *RetryExecutor {
	if policy == nil {
		policy = NewNoRetry()
	}
	executor := &RetryExecutor{
		policy: policy,
		clock:  types.NewRealClock(),
		logger: slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Policy returns the policy in use
func (r *RetryExecutor) Policy() RetryPolicy {
	return r.policy
}

// Execute runs fn until it succeeds, the policy refuses another attempt, or
// ctx is done while waiting between attempts. name labels the log lines.
//
// A failed final attempt returns the last error. Item errors are annotated
// with the attempt count; other errors are wrapped once more than one
// attempt was made.
func (r *RetryExecutor) Execute(ctx context.Context, name string, fn ExecuteFunc) error {
	attempt := 0

	for {
		attempt++
		r.update(func(s *RetryStats) { s.TotalAttempts++ })

		if attempt > 1 {
			r.logger.Debug("retry attempt",
				slog.String("operation", name),
				slog.Int("attempt", attempt),
			)
		}

		err := fn(ctx)
		if err == nil {
			r.update(func(s *RetryStats) {
				s.TotalSuccesses++
				if attempt > 1 {
					s.TotalRetries++
				}
			})
			if attempt > 1 {
				r.logger.Info("retry succeeded",
					slog.String("operation", name),
					slog.Int("attempt", attempt),
				)
			}
			return nil
		}

		if !r.policy.ShouldRetry(err, attempt) {
			r.update(func(s *RetryStats) {
				s.TotalFailures++
				if attempt > 1 {
					s.TotalRetries++
				}
			})
			if attempt > 1 {
				r.logger.Warn("retry attempts exhausted",
					slog.String("operation", name),
					slog.Int("attempts", attempt),
					slog.String("error", err.Error()),
				)
			}
			return r.wrapError(err, attempt)
		}

		delay := r.policy.NextDelay(attempt)
		if d := types.GetRetryDelay(err); d > delay {
			delay = d
		}
		r.update(func(s *RetryStats) {
			s.LastRetryTime = r.clock.Now()
			s.TotalRetryDelay += delay
		})

		if err := types.Sleep(ctx, r.clock, delay); err != nil {
			r.update(func(s *RetryStats) { s.TotalFailures++ })
			return fmt.Errorf("%s: retry wait aborted after %d attempts: %w", name, attempt, err)
		}
	}
}

// GetStats returns a snapshot of the retry statistics
func (r *RetryExecutor) GetStats() RetryStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *RetryExecutor) update(fn func(*RetryStats)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.stats)
}

func (r *RetryExecutor) wrapError(err error, attempts int) error {
	var itemErr *types.ItemError
	if errors.As(err, &itemErr) {
		itemErr.WithContext("retry_attempts", attempts)
		return err
	}
	if attempts <= 1 {
		return err
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}

// ExecutorOption is a configuration option for retry executor
type ExecutorOption func(*RetryExecutor)

// WithClock sets the clock for time operations
func WithClock(clock types.Clock) ExecutorOption {
	return func(r *RetryExecutor) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithLogger sets the logger for retry events
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(r *RetryExecutor) {
		if logger != nil {
			r.logger = logger
		}
	}
}
