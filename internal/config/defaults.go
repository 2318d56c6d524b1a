package config

import "github.com/jzx17/imgqueue/internal/paths"

const (
	// DefaultWorkers is the pool size used when the thread count is omitted or invalid
	DefaultWorkers = 4

	defaultQueueCapacity    = 0
	defaultRetryAttempts    = 1
	defaultRetryDelayMS     = 200
	defaultStartGraceMS     = 100
	defaultPollIntervalMS   = 100
	defaultProgressEvery    = 10
	defaultDrainWaitMS      = 500
	defaultJPEGQuality      = 95
	defaultLogFormat        = "auto"
	defaultLogLevel         = "info"
	defaultSummaryFormat    = "auto"
	defaultErrorStrategy    = "continue"
	defaultOutputPermission = 0o755
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			Extensions: append([]string(nil), paths.DefaultExtensions...),
		},
		Workers: Workers{
			Count:         DefaultWorkers,
			QueueCapacity: defaultQueueCapacity,
		},
		Retry: Retry{
			MaxAttempts: defaultRetryAttempts,
			DelayMS:     defaultRetryDelayMS,
		},
		Run: Run{
			StartGraceMS:   defaultStartGraceMS,
			PollIntervalMS: defaultPollIntervalMS,
			ProgressEvery:  defaultProgressEvery,
			DrainWaitMS:    defaultDrainWaitMS,
			ErrorStrategy:  defaultErrorStrategy,
		},
		Imaging: Imaging{
			JPEGQuality: defaultJPEGQuality,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Summary: Summary{
			Format: defaultSummaryFormat,
		},
	}
}
