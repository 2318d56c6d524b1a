// Package retry provides bounded retry for per-item operations.
//
// Policies:
//   - NoRetry: a single attempt (the default)
//   - FixedDelayRetry: constant delay between attempts
//   - ExponentialBackoffRetry: delay grows by a multiplier up to a cap
//
// Only errors accepted by the policy's RetryCondition are retried. The default
// condition, DefaultRetryCondition, accepts item errors with an io reason and
// types.RetryableError values marked retryable; decode and encode failures are
// never retried because repeating them cannot succeed.
//
// The executor waits between attempts through types.Clock, so tests drive it
// with a quartz mock, and a cancelled context aborts the wait:
//
//	policy := retry.NewPolicy(3, 50*time.Millisecond,
//		retry.WithJitter(retry.ProportionalJitter(0.1)))
//	executor := retry.NewRetryExecutor(policy, retry.WithLogger(logger))
//
//	err := executor.Execute(ctx, "invert", func(ctx context.Context) error {
//		return transform.Transform(ctx, src, dst)
//	})
//
// RetryExecutor is safe for concurrent use.
package retry
