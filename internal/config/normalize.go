package config

import (
	"fmt"
	"path/filepath"
	"strings"

	errhandler "github.com/jzx17/imgqueue/internal/errors"
	"github.com/jzx17/imgqueue/internal/paths"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRun()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.InputDir, err = absPath(c.Paths.InputDir); err != nil {
		return fmt.Errorf("paths.input_dir: %w", err)
	}
	if c.Paths.OutputDir, err = absPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}

	seen := make(map[string]bool, len(c.Paths.Extensions))
	exts := make([]string, 0, len(c.Paths.Extensions))
	for _, ext := range c.Paths.Extensions {
		ext = paths.NormalizeExtension(ext)
		if ext == "" || seen[ext] {
			continue
		}
		seen[ext] = true
		exts = append(exts, ext)
	}
	c.Paths.Extensions = exts
	return nil
}

func (c *Config) normalizeRun() {
	strategy := strings.TrimSpace(c.Run.ErrorStrategy)
	if parsed, err := errhandler.ParseStrategy(strategy); err == nil {
		if parsed == errhandler.FailFastStrategy {
			strategy = "fail-fast"
		} else {
			strategy = "continue"
		}
	}
	c.Run.ErrorStrategy = strategy

	seen := make(map[string]bool, len(c.Run.AbsorbReasons))
	reasons := make([]string, 0, len(c.Run.AbsorbReasons))
	for _, r := range c.Run.AbsorbReasons {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		reasons = append(reasons, r)
	}
	c.Run.AbsorbReasons = reasons
	c.Retry.Jitter = strings.ToLower(strings.TrimSpace(c.Retry.Jitter))
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Summary.Format = strings.ToLower(strings.TrimSpace(c.Summary.Format))
	if c.Summary.Format == "" {
		c.Summary.Format = defaultSummaryFormat
	}
}

func absPath(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	abs, err := filepath.Abs(filepath.Clean(value))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return abs, nil
}
