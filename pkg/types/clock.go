// Package types provides core clock abstractions for time mocking
package types

import (
	"context"
	"time"

	"github.com/coder/quartz"
)

// Clock provides an abstraction over time operations for testing
type Clock interface {
	// Now returns the current time
	Now() time.Time
	// Since returns the time elapsed since t
	Since(t time.Time) time.Duration
	// NewTimer creates a new Timer
	NewTimer(d time.Duration) Timer
	// NewTicker creates a new Ticker
	NewTicker(d time.Duration) Ticker
}

// Timer provides timer operations
type Timer interface {
	C() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

// Ticker provides ticker operations
type Ticker interface {
	C() <-chan time.Time
	Stop()
	Reset(d time.Duration)
}

// quartzClock adapts a quartz.Clock (real or mock) to Clock
type quartzClock struct {
	clock quartz.Clock
}

// NewClock wraps a quartz clock. Tests pass a *quartz.Mock here.
func NewClock(clock quartz.Clock) Clock {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &quartzClock{clock: clock}
}

// NewRealClock creates a clock backed by wall time
func NewRealClock() Clock {
	return NewClock(quartz.NewReal())
}

func (c *quartzClock) Now() time.Time {
	return c.clock.Now()
}

func (c *quartzClock) Since(t time.Time) time.Duration {
	return c.clock.Since(t)
}

func (c *quartzClock) NewTimer(d time.Duration) Timer {
	return &quartzTimer{timer: c.clock.NewTimer(d)}
}

func (c *quartzClock) NewTicker(d time.Duration) Ticker {
	return &quartzTicker{ticker: c.clock.NewTicker(d)}
}

type quartzTimer struct {
	timer *quartz.Timer
}

func (t *quartzTimer) C() <-chan time.Time {
	return t.timer.C
}

func (t *quartzTimer) Stop() bool {
	return t.timer.Stop()
}

func (t *quartzTimer) Reset(d time.Duration) bool {
	return t.timer.Reset(d)
}

type quartzTicker struct {
	ticker *quartz.Ticker
}

func (t *quartzTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t *quartzTicker) Stop() {
	t.ticker.Stop()
}

func (t *quartzTicker) Reset(d time.Duration) {
	t.ticker.Reset(d)
}

// Sleep blocks for d or until ctx is done. A non-positive d returns immediately.
func Sleep(ctx context.Context, clock Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}
