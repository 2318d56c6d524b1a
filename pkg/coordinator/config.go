package coordinator

import (
	"log/slog"
	"time"

	"github.com/jzx17/imgqueue/pkg/retry"
	"github.com/jzx17/imgqueue/pkg/types"
)

// Default timing of a run
const (
	DefaultWorkers       = 4
	DefaultStartGrace    = 100 * time.Millisecond
	DefaultPollInterval  = 100 * time.Millisecond
	DefaultDrainWait     = 500 * time.Millisecond
	DefaultProgressEvery = 10
)

// Config describes one run. Only InputDir and OutputDir are required; the
// collaborators default to the extension filter, the tree mapper and the
// pixel inverter.
type Config struct {
	// InputDir is walked for source images
	InputDir string

	// OutputDir receives the mirrored results
	OutputDir string

	// Workers is the pool size
	Workers int

	// QueueCapacity bounds the queue; 0 means unbounded
	QueueCapacity int

	// Extensions feeds the default filter; empty means the built-in list
	Extensions []string

	// JPEGQuality is used by the default transform
	JPEGQuality int

	// Filter overrides the extension filter
	Filter types.Eligibility

	// Mapper overrides the input-to-output path mapping
	Mapper types.PathMapper

	// Transform overrides the pixel inverter
	Transform types.Transform

	// RetryPolicy applies to every item; nil means a single attempt
	RetryPolicy retry.RetryPolicy

	// FailFast aborts the run on the first failed item
	FailFast bool

	// AbsorbReasons keeps failures with these reasons non-fatal under FailFast
	AbsorbReasons []types.FailureReason

	// StartGrace is waited between starting the producer and the pool
	StartGrace time.Duration

	// PollInterval is how often completion and cancellation are checked
	PollInterval time.Duration

	// ProgressEvery logs progress every N polls; 0 disables it
	ProgressEvery int

	// DrainWait is how long workers get after a cancellation before the
	// queue is stopped
	DrainWait time.Duration

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	// Logger is the base logger; the run id is attached to it
	Logger *slog.Logger
}

// DefaultConfig returns a configuration with the default timing and pool size
func DefaultConfig() *Config {
	return &Config{
		Workers:       DefaultWorkers,
		StartGrace:    DefaultStartGrace,
		PollInterval:  DefaultPollInterval,
		ProgressEvery: DefaultProgressEvery,
		DrainWait:     DefaultDrainWait,
	}
}
