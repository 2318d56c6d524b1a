// Package retry provides retry policies for per-item operations
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jzx17/imgqueue/pkg/types"
)

// RetryPolicy defines the retry strategy interface
type RetryPolicy interface {
	// ShouldRetry determines whether attempt (1-based) may be followed by another
	ShouldRetry(err error, attempt int) bool

	// NextDelay returns the delay before the attempt after attempt
	NextDelay(attempt int) time.Duration

	// MaxAttempts returns the maximum number of attempts, first one included
	MaxAttempts() int
}

// RetryCondition is a function that determines retry conditions
type RetryCondition func(error) bool

// BaseRetryPolicy provides the attempt bound and retry condition shared by all policies
type BaseRetryPolicy struct {
	maxAttempts    int
	retryCondition RetryCondition
	jitter         JitterFunc

	// backoff shape, read by ExponentialBackoffRetry
	multiplierOverride float64
	maxDelayOverride   time.Duration
}

// NewBaseRetryPolicy creates a base retry policy. maxAttempts below 1 is treated as 1.
func NewBaseRetryPolicy(maxAttempts int, opts ...PolicyOption) *BaseRetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	policy := &BaseRetryPolicy{
		maxAttempts:    maxAttempts,
		retryCondition: DefaultRetryCondition,
	}

	for _, opt := range opts {
		opt(policy)
	}

	return policy
}

// ShouldRetry determines whether to retry
func (p *BaseRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.maxAttempts {
		return false
	}
	return p.retryCondition(err)
}

// MaxAttempts returns the maximum attempts
func (p *BaseRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

func (p *BaseRetryPolicy) applyJitter(delay time.Duration) time.Duration {
	if p.jitter == nil {
		return delay
	}
	return p.jitter(delay)
}

// NoRetry runs every operation exactly once
type NoRetry struct {
	*BaseRetryPolicy
}

// NewNoRetry creates the single-attempt policy used by default
func NewNoRetry() *NoRetry {
	return &NoRetry{BaseRetryPolicy: NewBaseRetryPolicy(1)}
}

// NextDelay always returns zero
func (p *NoRetry) NextDelay(attempt int) time.Duration {
	return 0
}

// FixedDelayRetry implements fixed delay retry strategy
type FixedDelayRetry struct {
	*BaseRetryPolicy
	delay time.Duration
}

// NewFixedDelayRetry creates a fixed delay retry policy
func NewFixedDelayRetry(maxAttempts int, delay time.Duration, opts ...PolicyOption) *FixedDelayRetry {
	return &FixedDelayRetry{
		BaseRetryPolicy: NewBaseRetryPolicy(maxAttempts, opts...),
		delay:           delay,
	}
}

// NextDelay returns the delay for the next retry
func (p *FixedDelayRetry) NextDelay(attempt int) time.Duration {
	return p.applyJitter(p.delay)
}

// ExponentialBackoffRetry implements exponential backoff retry strategy
type ExponentialBackoffRetry struct {
	*BaseRetryPolicy
	initialDelay time.Duration
	multiplier   float64
	maxDelay     time.Duration
}

// NewExponentialBackoffRetry creates an exponential backoff retry policy.
// The multiplier defaults to 2 and the delay is capped at 30s.
func NewExponentialBackoffRetry(maxAttempts int, initialDelay time.Duration, opts ...PolicyOption) *ExponentialBackoffRetry {
	policy := &ExponentialBackoffRetry{
		BaseRetryPolicy: NewBaseRetryPolicy(maxAttempts, opts...),
		initialDelay:    initialDelay,
		multiplier:      2.0,
		maxDelay:        30 * time.Second,
	}
	if m := policy.BaseRetryPolicy.multiplierOverride; m > 0 {
		policy.multiplier = m
	}
	if d := policy.BaseRetryPolicy.maxDelayOverride; d > 0 {
		policy.maxDelay = d
	}
	return policy
}

// NextDelay returns the delay for the next retry
func (p *ExponentialBackoffRetry) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(float64(p.initialDelay) * math.Pow(p.multiplier, float64(attempt-1)))
	if delay > p.maxDelay || delay < 0 {
		delay = p.maxDelay
	}
	return p.applyJitter(delay)
}

// NewPolicy picks the policy for a retry budget: one attempt or fewer means
// NoRetry, anything else backs off exponentially from delay.
func NewPolicy(maxAttempts int, delay time.Duration, opts ...PolicyOption) RetryPolicy {
	if maxAttempts <= 1 {
		return NewNoRetry()
	}
	return NewExponentialBackoffRetry(maxAttempts, delay, opts...)
}

// PolicyOption is a configuration option for retry policies
type PolicyOption func(*BaseRetryPolicy)

// WithRetryCondition sets the retry condition
func WithRetryCondition(condition RetryCondition) PolicyOption {
	return func(p *BaseRetryPolicy) {
		if condition != nil {
			p.retryCondition = condition
		}
	}
}

// WithJitter applies jitter to every computed delay
func WithJitter(jitter JitterFunc) PolicyOption {
	return func(p *BaseRetryPolicy) {
		p.jitter = jitter
	}
}

// WithMultiplier sets the growth factor for exponential backoff
func WithMultiplier(multiplier float64) PolicyOption {
	return func(p *BaseRetryPolicy) {
		p.multiplierOverride = multiplier
	}
}

// WithMaxDelay caps the exponential backoff delay
func WithMaxDelay(maxDelay time.Duration) PolicyOption {
	return func(p *BaseRetryPolicy) {
		p.maxDelayOverride = maxDelay
	}
}

// DefaultRetryCondition retries errors marked retryable: item errors with an
// io reason and RetryableError values. Context errors are never retried.
func DefaultRetryCondition(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return types.IsRetryable(err)
}
