package types

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coder/quartz"
)

func TestWorkItem(t *testing.T) {
	item := NewWorkItem("/in/a.png", "/out/a.png")
	if item.IsSentinel() {
		t.Errorf("regular item must not be a sentinel")
	}
	if item.Source != "/in/a.png" || item.Destination != "/out/a.png" {
		t.Errorf("unexpected item %+v", item)
	}

	s := Sentinel()
	if !s.IsSentinel() {
		t.Errorf("expected sentinel")
	}
	if s.Source != "" || s.Destination != "" {
		t.Errorf("sentinel must carry no paths, got %+v", s)
	}

	// Paths alone never make a sentinel.
	if (WorkItem{}).IsSentinel() {
		t.Errorf("zero value must not be a sentinel")
	}
}

func TestFuncAdapters(t *testing.T) {
	var e Eligibility = EligibilityFunc(func(p string) bool { return p == "yes" })
	if !e.IsEligible("yes") || e.IsEligible("no") {
		t.Errorf("EligibilityFunc did not delegate")
	}

	var m PathMapper = PathMapperFunc(func(_ context.Context, src string) (string, error) {
		if src == "" {
			return "", errors.New("empty")
		}
		return "/out/" + src, nil
	})
	if dst, err := m.MapOutputPath(context.Background(), "a"); err != nil || dst != "/out/a" {
		t.Errorf("PathMapperFunc returned %q, %v", dst, err)
	}
	if _, err := m.MapOutputPath(context.Background(), ""); err == nil {
		t.Errorf("expected mapping error")
	}

	var called bool
	var tr Transform = TransformFunc(func(ctx context.Context, src, dst string) error {
		called = src == "s" && dst == "d"
		return nil
	})
	if err := tr.Transform(context.Background(), "s", "d"); err != nil || !called {
		t.Errorf("TransformFunc did not delegate")
	}
}

func TestTaskMarker(t *testing.T) {
	type owner struct{ n int }
	a, b := &owner{1}, &owner{2}

	ctx := WithTask(context.Background(), a)
	if !InTask(ctx, a) {
		t.Errorf("expected ctx to belong to a")
	}
	if InTask(ctx, b) {
		t.Errorf("ctx must not belong to b")
	}

	nested := WithTask(ctx, b)
	if !InTask(nested, a) || !InTask(nested, b) {
		t.Errorf("nested context should carry both markers")
	}
	if InTask(context.Background(), a) || InTask(ctx, nil) {
		t.Errorf("unexpected marker")
	}
}

func TestSleep(t *testing.T) {
	mock := quartz.NewMock(t)
	clock := NewClock(mock)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Sleep(ctx, clock, time.Second)
	}()

	deadline := time.After(5 * time.Second)
	for {
		// The timer may not exist yet; each advance lands exactly on it once it does.
		mock.Advance(time.Second).MustWait(ctx)
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
			return
		case <-deadline:
			t.Fatal("sleep did not return")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestSleep_Cancelled(t *testing.T) {
	clock := NewRealClock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Sleep(ctx, clock, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if err := Sleep(context.Background(), clock, 0); err != nil {
		t.Errorf("expected immediate return, got %v", err)
	}
}
