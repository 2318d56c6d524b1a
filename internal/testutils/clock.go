package testutils

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/jzx17/imgqueue/pkg/types"
)

// NewMockClock creates a quartz mock and the types.Clock backed by it
func NewMockClock(t testing.TB) (*quartz.Mock, types.Clock) {
	mock := quartz.NewMock(t)
	return mock, types.NewClock(mock)
}

// AdvanceUntil steps the mock clock by step until done reports true or the
// timeout (in wall time) expires. Every timer and ticker the code under test
// creates must have a duration that is a multiple of step, so each advance
// lands exactly on the next event.
func AdvanceUntil(t testing.TB, mock *quartz.Mock, step, timeout time.Duration, done func() bool) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for !done() {
		if ctx.Err() != nil {
			t.Fatalf("condition not met within %v of wall time (mock time %v)", timeout, mock.Now())
			return
		}
		mock.Advance(step).MustWait(ctx)
		// give woken goroutines a moment to react before checking again
		time.Sleep(time.Millisecond)
	}
}
