package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/jzx17/imgqueue/internal/paths"
)

// Validate ensures the configuration is usable. It stats the input
// directory; the output directory is only checked for shape here.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateRun(); err != nil {
		return err
	}
	if err := c.validateImaging(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.InputDir == "" {
		return errors.New("paths.input_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	info, err := os.Stat(c.Paths.InputDir)
	if err != nil {
		return fmt.Errorf("input directory %q: %w", c.Paths.InputDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("input directory %q is not a directory", c.Paths.InputDir)
	}
	if c.Paths.InputDir == c.Paths.OutputDir {
		return errors.New("paths.output_dir must differ from paths.input_dir")
	}
	if paths.IsUnder(c.Paths.InputDir, c.Paths.OutputDir) {
		return errors.New("paths.input_dir must not be inside paths.output_dir")
	}
	if len(c.Paths.Extensions) == 0 {
		return errors.New("paths.extensions must list at least one extension")
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.Count < 1 {
		return fmt.Errorf("workers.count must be positive, got %d", c.Workers.Count)
	}
	if c.Workers.QueueCapacity < 0 {
		return fmt.Errorf("workers.queue_capacity must not be negative, got %d", c.Workers.QueueCapacity)
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.DelayMS < 0 {
		return errors.New("retry.delay_ms must not be negative")
	}
	if _, err := c.RetryPolicy(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRun() error {
	if c.Run.StartGraceMS < 0 {
		return errors.New("run.start_grace_ms must not be negative")
	}
	if c.Run.PollIntervalMS <= 0 {
		return errors.New("run.poll_interval_ms must be positive")
	}
	if c.Run.ProgressEvery < 0 {
		return errors.New("run.progress_every must not be negative")
	}
	if c.Run.DrainWaitMS < 0 {
		return errors.New("run.drain_wait_ms must not be negative")
	}
	switch c.Run.ErrorStrategy {
	case "continue", "fail-fast":
	default:
		return fmt.Errorf("run.error_strategy must be continue or fail-fast, got %q", c.Run.ErrorStrategy)
	}
	if _, err := c.AbsorbReasons(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateImaging() error {
	if c.Imaging.JPEGQuality < 1 || c.Imaging.JPEGQuality > 100 {
		return fmt.Errorf("imaging.jpeg_quality must be between 1 and 100, got %d", c.Imaging.JPEGQuality)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of auto, console, json", c.Logging.Format)
	}
	switch c.Summary.Format {
	case "auto", "table", "json":
	default:
		return fmt.Errorf("summary.format %q is not one of auto, table, json", c.Summary.Format)
	}
	return nil
}
