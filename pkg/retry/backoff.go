// Package retry provides jitter functions for backoff delays
package retry

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/jzx17/imgqueue/pkg/types"
)

// JitterFunc jitter function type
type JitterFunc func(time.Duration) time.Duration

// FullJitter full jitter function - random within [0, delay) range
func FullJitter(delay time.Duration) time.Duration {
	if delay <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(delay)))
}

// EqualJitter equal jitter function - delay/2 + random(0, delay/2)
func EqualJitter(delay time.Duration) time.Duration {
	half := delay / 2
	if half <= 0 {
		return delay
	}
	return half + time.Duration(rand.Int63n(int64(half)))
}

// ProportionalJitter spreads the delay by up to factor in either direction.
// Factors outside (0, 1] fall back to 0.1.
func ProportionalJitter(factor float64) JitterFunc {
	if factor <= 0 || factor > 1 {
		factor = 0.1
	}
	return func(delay time.Duration) time.Duration {
		if delay <= 0 {
			return 0
		}
		spread := float64(delay) * factor
		result := delay + time.Duration((rand.Float64()-0.5)*2*spread)
		if result < 0 {
			result = delay / 2
		}
		return result
	}
}

// ParseJitter reads a jitter setting: "" or "none" for no jitter, "full",
// "equal", or a factor in (0, 1] for ProportionalJitter. A nil JitterFunc
// means delays are used as computed.
func ParseJitter(s string) (JitterFunc, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "", "none":
		return nil, nil
	case "full":
		return FullJitter, nil
	case "equal":
		return EqualJitter, nil
	default:
		factor, err := strconv.ParseFloat(v, 64)
		if err != nil || factor <= 0 || factor > 1 {
			return nil, fmt.Errorf("jitter %q: want none, full, equal or a factor in (0, 1]: %w", s, types.ErrInvalidInput)
		}
		return ProportionalJitter(factor), nil
	}
}
