package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jzx17/imgqueue/internal/fsx"
	"github.com/jzx17/imgqueue/pkg/retry"
	"github.com/jzx17/imgqueue/pkg/types"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUsage reports wrong positional arguments.
var ErrUsage = errors.New("usage: imgqueue <input_dir> <output_dir> [thread_count]")

// Paths contains the input and output roots.
type Paths struct {
	InputDir   string   `toml:"input_dir" yaml:"input_dir"`
	OutputDir  string   `toml:"output_dir" yaml:"output_dir"`
	Extensions []string `toml:"extensions" yaml:"extensions"`
}

// Workers contains pool and queue sizing.
type Workers struct {
	Count         int `toml:"count" yaml:"count"`
	QueueCapacity int `toml:"queue_capacity" yaml:"queue_capacity"` // 0 means unbounded
}

// Retry contains the per-item retry policy. MaxAttempts of 1 disables retries.
type Retry struct {
	MaxAttempts int    `toml:"max_attempts" yaml:"max_attempts"`
	DelayMS     int    `toml:"delay_ms" yaml:"delay_ms"`
	Jitter      string `toml:"jitter" yaml:"jitter"` // none, full, equal or a factor in (0, 1]
}

// Run contains coordinator timing and the failure strategy.
type Run struct {
	StartGraceMS   int    `toml:"start_grace_ms" yaml:"start_grace_ms"`
	PollIntervalMS int    `toml:"poll_interval_ms" yaml:"poll_interval_ms"`
	ProgressEvery  int    `toml:"progress_every" yaml:"progress_every"`
	DrainWaitMS    int    `toml:"drain_wait_ms" yaml:"drain_wait_ms"`
	ErrorStrategy  string `toml:"error_strategy" yaml:"error_strategy"` // continue or fail-fast
	// AbsorbReasons lists failure reasons that stay non-fatal under fail-fast
	AbsorbReasons []string `toml:"absorb_reasons" yaml:"absorb_reasons"`
}

// Imaging contains encoder settings.
type Imaging struct {
	JPEGQuality int `toml:"jpeg_quality" yaml:"jpeg_quality"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" yaml:"format"`
	Level  string `toml:"level" yaml:"level"`
}

// Summary controls how the run summary is printed.
type Summary struct {
	Format string `toml:"format" yaml:"format"` // auto, table or json
}

// Config encapsulates all configuration values for a run.
type Config struct {
	Paths   Paths   `toml:"paths" yaml:"paths"`
	Workers Workers `toml:"workers" yaml:"workers"`
	Retry   Retry   `toml:"retry" yaml:"retry"`
	Run     Run     `toml:"run" yaml:"run"`
	Imaging Imaging `toml:"imaging" yaml:"imaging"`
	Logging Logging `toml:"logging" yaml:"logging"`
	Summary Summary `toml:"summary" yaml:"summary"`
}

// Load returns the defaults overlaid with the file at path. An empty path
// returns the defaults. Files ending in .yaml or .yml are read as YAML,
// anything else as TOML. Unknown keys are rejected. The result is
// normalized but not validated, since positional arguments may still follow.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		if err := cfg.normalize(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// an empty document decodes to io.EOF and leaves the defaults alone
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyArgs applies `<input_dir> <output_dir> [thread_count]`. A thread count
// that does not parse or is below one falls back to DefaultWorkers.
func (c *Config) ApplyArgs(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("%w: got %d arguments", ErrUsage, len(args))
	}
	c.Paths.InputDir = args[0]
	c.Paths.OutputDir = args[1]
	if len(args) == 3 {
		c.Workers.Count, _ = ParseThreadCount(args[2])
	}
	return c.normalize()
}

// ParseThreadCount parses a thread count argument. ok is false when s was
// rejected and DefaultWorkers returned instead.
func ParseThreadCount(s string) (n int, ok bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return DefaultWorkers, false
	}
	return n, true
}

// PrepareOutput creates the output directory and takes its run lock. The
// caller must Unlock the returned lock when the run ends.
func (c *Config) PrepareOutput() (*fsx.DirLock, error) {
	if err := os.MkdirAll(c.Paths.OutputDir, defaultOutputPermission); err != nil {
		return nil, fmt.Errorf("create output directory %q: %w", c.Paths.OutputDir, err)
	}
	lock, err := fsx.LockDir(c.Paths.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("lock output directory %q: %w", c.Paths.OutputDir, err)
	}
	return lock, nil
}

// StartGrace is the pause between starting the producer and the workers.
func (c *Config) StartGrace() time.Duration {
	return time.Duration(c.Run.StartGraceMS) * time.Millisecond
}

// PollInterval is how often the coordinator checks for completion.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Run.PollIntervalMS) * time.Millisecond
}

// DrainWait is how long workers get to drain after a cancellation.
func (c *Config) DrainWait() time.Duration {
	return time.Duration(c.Run.DrainWaitMS) * time.Millisecond
}

// RetryDelay is the base delay between attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Retry.DelayMS) * time.Millisecond
}

// FailFast reports whether the first failed item aborts the run.
func (c *Config) FailFast() bool {
	return c.Run.ErrorStrategy == "fail-fast"
}

// RetryPolicy builds the per-item policy from the retry section.
func (c *Config) RetryPolicy() (retry.RetryPolicy, error) {
	jitter, err := retry.ParseJitter(c.Retry.Jitter)
	if err != nil {
		return nil, fmt.Errorf("retry.jitter: %w", err)
	}
	var opts []retry.PolicyOption
	if jitter != nil {
		opts = append(opts, retry.WithJitter(jitter))
	}
	return retry.NewPolicy(c.Retry.MaxAttempts, c.RetryDelay(), opts...), nil
}

// AbsorbReasons parses run.absorb_reasons.
func (c *Config) AbsorbReasons() ([]types.FailureReason, error) {
	reasons := make([]types.FailureReason, 0, len(c.Run.AbsorbReasons))
	for _, name := range c.Run.AbsorbReasons {
		r, err := types.ParseFailureReason(name)
		if err != nil {
			return nil, fmt.Errorf("run.absorb_reasons: %w", err)
		}
		reasons = append(reasons, r)
	}
	return reasons, nil
}
