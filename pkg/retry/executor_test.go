package retry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/jzx17/imgqueue/pkg/types"
)

func TestRetryExecutor_Execute_Success(t *testing.T) {
	executor := NewRetryExecutor(NewFixedDelayRetry(3, 0))

	err := executor.Execute(context.Background(), "op", func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	stats := executor.GetStats()
	if stats.TotalAttempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", stats.TotalAttempts)
	}
	if stats.TotalSuccesses != 1 {
		t.Errorf("Expected 1 success, got %d", stats.TotalSuccesses)
	}
	if stats.TotalRetries != 0 {
		t.Errorf("Expected 0 retries, got %d", stats.TotalRetries)
	}
}

func TestRetryExecutor_Execute_RetrySuccess(t *testing.T) {
	executor := NewRetryExecutor(NewFixedDelayRetry(3, 0))

	var attempts int32
	err := executor.Execute(context.Background(), "op", func(ctx context.Context) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return ioErr
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if atomic.LoadInt32(&attempts) != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}

	stats := executor.GetStats()
	if stats.TotalAttempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", stats.TotalAttempts)
	}
	if stats.TotalRetries != 1 {
		t.Errorf("Expected 1 retried operation, got %d", stats.TotalRetries)
	}
	if stats.AverageAttempts() != 3 {
		t.Errorf("Expected average 3, got %v", stats.AverageAttempts())
	}
}

func TestRetryExecutor_Execute_MaxAttemptsReached(t *testing.T) {
	executor := NewRetryExecutor(NewFixedDelayRetry(3, 0))

	var attempts int32
	itemErr := types.NewItemError("write", "/out/b.png", types.ReasonIO, errors.New("disk busy"))
	err := executor.Execute(context.Background(), "op", func(ctx context.Context) error {
		atomic.AddInt32(&attempts, 1)
		return itemErr
	})

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if types.ReasonOf(err) != types.ReasonIO {
		t.Errorf("Expected io reason to survive, got %v", types.ReasonOf(err))
	}
	if itemErr.Context["retry_attempts"] != 3 {
		t.Errorf("Expected retry_attempts annotation, got %v", itemErr.Context["retry_attempts"])
	}

	stats := executor.GetStats()
	if stats.TotalFailures != 1 {
		t.Errorf("Expected 1 failure, got %d", stats.TotalFailures)
	}
}

func TestRetryExecutor_Execute_NonRetryableError(t *testing.T) {
	executor := NewRetryExecutor(NewFixedDelayRetry(3, 0))

	var attempts int32
	err := executor.Execute(context.Background(), "op", func(ctx context.Context) error {
		atomic.AddInt32(&attempts, 1)
		return decodeErr
	})

	if !errors.Is(err, decodeErr) {
		t.Fatalf("Expected decode error, got %v", err)
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRetryExecutor_Execute_PlainErrorWrappedAfterRetries(t *testing.T) {
	executor := NewRetryExecutor(NewFixedDelayRetry(2, 0, WithRetryCondition(func(error) bool { return true })))

	base := errors.New("flaky")
	err := executor.Execute(context.Background(), "op", func(ctx context.Context) error {
		return base
	})

	if !errors.Is(err, base) {
		t.Fatalf("Expected wrapped base error, got %v", err)
	}
	if err == base {
		t.Errorf("Expected attempt count wrapping")
	}
}

func TestRetryExecutor_DefaultIsNoRetry(t *testing.T) {
	executor := NewRetryExecutor(nil)

	var attempts int32
	_ = executor.Execute(context.Background(), "op", func(ctx context.Context) error {
		atomic.AddInt32(&attempts, 1)
		return ioErr
	})

	if atomic.LoadInt32(&attempts) != 1 {
		t.Errorf("Expected a single attempt, got %d", attempts)
	}
	if executor.Policy().MaxAttempts() != 1 {
		t.Errorf("Expected NoRetry policy")
	}
}

func TestRetryExecutor_WaitsOnClock(t *testing.T) {
	mock := quartz.NewMock(t)
	executor := NewRetryExecutor(NewFixedDelayRetry(2, time.Second), WithClock(types.NewClock(mock)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var attempts int32
	done := make(chan error, 1)
	go func() {
		done <- executor.Execute(ctx, "op", func(ctx context.Context) error {
			if atomic.AddInt32(&attempts, 1) == 1 {
				return ioErr
			}
			return nil
		})
	}()

	deadline := time.After(5 * time.Second)
	for {
		mock.Advance(time.Second).MustWait(ctx)
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Expected success after retry, got %v", err)
			}
			if atomic.LoadInt32(&attempts) != 2 {
				t.Errorf("Expected 2 attempts, got %d", attempts)
			}
			if got := executor.GetStats().TotalRetryDelay; got != time.Second {
				t.Errorf("Expected 1s total delay, got %v", got)
			}
			return
		case <-deadline:
			t.Fatal("executor did not finish")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestRetryExecutor_ContextCancelledDuringWait(t *testing.T) {
	executor := NewRetryExecutor(NewFixedDelayRetry(3, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := executor.Execute(ctx, "op", func(ctx context.Context) error {
		return ioErr
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("cancellation did not abort the wait")
	}
	if executor.GetStats().TotalFailures != 1 {
		t.Errorf("Expected the aborted operation to count as a failure")
	}
}
