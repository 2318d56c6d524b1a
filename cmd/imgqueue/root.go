package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jzx17/imgqueue/internal/config"
	"github.com/jzx17/imgqueue/internal/logging"
	"github.com/jzx17/imgqueue/internal/report"
	"github.com/jzx17/imgqueue/pkg/coordinator"
)

type rootOptions struct {
	configPath    string
	logLevel      string
	logFormat     string
	queueCapacity int
	retries       int
	failFast      bool
	jpegQuality   int
	jsonSummary   bool
}

// execute runs the command line and maps the outcome to an exit code
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(stderr, "imgqueue:", err)
		}
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "imgqueue <input_dir> <output_dir> [thread_count]",
		Short: "Invert every image under a directory tree using a worker pool",
		Long: "imgqueue walks input_dir, inverts the colors of every eligible image and\n" +
			"writes the result to the same relative path under output_dir.\n" +
			"thread_count defaults to 4 when omitted or invalid.",
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvert(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Configuration file path (TOML, or YAML by extension)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format: auto, console or json")
	flags.IntVar(&opts.queueCapacity, "queue-capacity", 0, "Bound the work queue; 0 means unbounded")
	flags.IntVar(&opts.retries, "retries", 0, "Retries per failed item")
	flags.BoolVar(&opts.failFast, "fail-fast", false, "Abort the run on the first failed item")
	flags.IntVar(&opts.jpegQuality, "jpeg-quality", 0, "JPEG encoder quality (1-100)")
	flags.BoolVar(&opts.jsonSummary, "json", false, "Print the summary as JSON")

	return cmd
}

func runInvert(cmd *cobra.Command, opts *rootOptions, args []string) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyArgs(args); err != nil {
		return err
	}
	applyFlags(cmd, opts, cfg)

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	if len(args) == 3 {
		if _, ok := config.ParseThreadCount(args[2]); !ok {
			logger.Warn("invalid thread count, using default",
				slog.String("thread_count", args[2]),
				slog.Int("workers", config.DefaultWorkers),
			)
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	lock, err := cfg.PrepareOutput()
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("release output lock", slog.Any("error", err))
		}
	}()

	policy, err := cfg.RetryPolicy()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	absorb, err := cfg.AbsorbReasons()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	coord, err := coordinator.New(&coordinator.Config{
		InputDir:      cfg.Paths.InputDir,
		OutputDir:     cfg.Paths.OutputDir,
		Workers:       cfg.Workers.Count,
		QueueCapacity: cfg.Workers.QueueCapacity,
		Extensions:    cfg.Paths.Extensions,
		JPEGQuality:   cfg.Imaging.JPEGQuality,
		RetryPolicy:   policy,
		FailFast:      cfg.FailFast(),
		AbsorbReasons: absorb,
		StartGrace:    cfg.StartGrace(),
		PollInterval:  cfg.PollInterval(),
		ProgressEvery: cfg.Run.ProgressEvery,
		DrainWait:     cfg.DrainWait(),
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	summary, runErr := coord.Run(cmd.Context())
	if err := report.Write(cmd.OutOrStdout(), cfg.Summary.Format, summary); err != nil {
		logger.Error("write summary", slog.Any("error", err))
	}
	return runErr
}

// applyFlags overrides config values with the flags given on the command line
func applyFlags(cmd *cobra.Command, opts *rootOptions, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = strings.ToLower(strings.TrimSpace(opts.logLevel))
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = strings.ToLower(strings.TrimSpace(opts.logFormat))
	}
	if flags.Changed("queue-capacity") {
		cfg.Workers.QueueCapacity = opts.queueCapacity
	}
	if flags.Changed("retries") {
		cfg.Retry.MaxAttempts = opts.retries + 1
	}
	if flags.Changed("fail-fast") && opts.failFast {
		cfg.Run.ErrorStrategy = "fail-fast"
	}
	if flags.Changed("jpeg-quality") {
		cfg.Imaging.JPEGQuality = opts.jpegQuality
	}
	if opts.jsonSummary {
		cfg.Summary.Format = report.FormatJSON
	}
}
