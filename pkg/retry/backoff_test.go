package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/jzx17/imgqueue/pkg/types"
)

func TestFullJitter(t *testing.T) {
	if FullJitter(0) != 0 || FullJitter(-time.Second) != 0 {
		t.Errorf("non-positive delay must yield zero")
	}

	delay := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		if d := FullJitter(delay); d < 0 || d >= delay {
			t.Fatalf("FullJitter(%v) = %v, want [0, %v)", delay, d, delay)
		}
	}
}

func TestEqualJitter(t *testing.T) {
	delay := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		if d := EqualJitter(delay); d < delay/2 || d >= delay {
			t.Fatalf("EqualJitter(%v) = %v, want [%v, %v)", delay, d, delay/2, delay)
		}
	}

	if EqualJitter(1) != 1 {
		t.Errorf("delay too small to halve must be returned unchanged")
	}
}

func TestProportionalJitter(t *testing.T) {
	tests := []struct {
		name   string
		factor float64
		min    time.Duration
		max    time.Duration
	}{
		{"ten percent", 0.1, 900 * time.Millisecond, 1100 * time.Millisecond},
		{"half", 0.5, 500 * time.Millisecond, 1500 * time.Millisecond},
		{"invalid factor falls back", 5, 900 * time.Millisecond, 1100 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jitter := ProportionalJitter(tt.factor)
			for i := 0; i < 100; i++ {
				d := jitter(time.Second)
				if d < tt.min || d > tt.max {
					t.Fatalf("jitter(1s) = %v, want [%v, %v]", d, tt.min, tt.max)
				}
			}
			if jitter(0) != 0 {
				t.Errorf("zero delay must stay zero")
			}
		})
	}
}

func TestParseJitter(t *testing.T) {
	for _, none := range []string{"", " none ", "NONE"} {
		jitter, err := ParseJitter(none)
		if err != nil || jitter != nil {
			t.Errorf("ParseJitter(%q) = %v, %v; want no jitter", none, jitter != nil, err)
		}
	}

	full, err := ParseJitter("full")
	if err != nil || full == nil {
		t.Fatalf("ParseJitter(full): %v", err)
	}
	if d := full(time.Second); d < 0 || d >= time.Second {
		t.Errorf("full jitter out of range: %v", d)
	}

	equal, err := ParseJitter("Equal")
	if err != nil || equal == nil {
		t.Fatalf("ParseJitter(equal): %v", err)
	}
	if d := equal(time.Second); d < 500*time.Millisecond || d >= time.Second {
		t.Errorf("equal jitter out of range: %v", d)
	}

	prop, err := ParseJitter("0.2")
	if err != nil || prop == nil {
		t.Fatalf("ParseJitter(0.2): %v", err)
	}
	if d := prop(time.Second); d < 800*time.Millisecond || d > 1200*time.Millisecond {
		t.Errorf("proportional jitter out of range: %v", d)
	}

	for _, bad := range []string{"0", "1.5", "-0.1", "lots"} {
		if _, err := ParseJitter(bad); !errors.Is(err, types.ErrInvalidInput) {
			t.Errorf("ParseJitter(%q) = %v, want ErrInvalidInput", bad, err)
		}
	}
}
