package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	errhandler "github.com/jzx17/imgqueue/internal/errors"
	"github.com/jzx17/imgqueue/internal/imaging"
	"github.com/jzx17/imgqueue/internal/paths"
	"github.com/jzx17/imgqueue/pkg/producer"
	"github.com/jzx17/imgqueue/pkg/queue"
	"github.com/jzx17/imgqueue/pkg/retry"
	"github.com/jzx17/imgqueue/pkg/types"
	"github.com/jzx17/imgqueue/pkg/worker"
)

// Run outcomes reported in Summary.Reason
const (
	ReasonCompleted   = "completed"
	ReasonInterrupted = "interrupted"
	ReasonFailFast    = "fail_fast"
)

// WorkerSummary is the per-worker part of a Summary
type WorkerSummary struct {
	ID        int    `json:"id"`
	Processed int64  `json:"processed"`
	Failed    int64  `json:"failed"`
	Skipped   int64  `json:"skipped"`
	Exit      string `json:"exit"`
}

// Summary describes a finished run
type Summary struct {
	RunID           string          `json:"run_id"`
	InputDir        string          `json:"input_dir"`
	OutputDir       string          `json:"output_dir"`
	Workers         int             `json:"workers"`
	Discovered      int64           `json:"discovered"`
	Processed       int64           `json:"processed"`
	Failed          int64           `json:"failed"`
	Skipped         int64           `json:"skipped"`
	MappingFailures int64           `json:"mapping_failures"`
	WalkErrors      int64           `json:"walk_errors"`
	FinalQueueSize  int             `json:"final_queue_size"`
	Attempts        int64           `json:"attempts"`
	Retried         int64           `json:"retried"`
	RetryWaitMS     int64           `json:"retry_wait_ms"`
	Interrupted     bool            `json:"interrupted"`
	Reason          string          `json:"reason"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      time.Time       `json:"finished_at"`
	WorkerStats     []WorkerSummary `json:"worker_stats"`
}

// Elapsed is the wall time of the run
func (s Summary) Elapsed() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Coordinator wires a queue, one producer and a worker pool together and
// drives them through startup, completion or cancellation, and shutdown.
// A Coordinator runs once.
type Coordinator struct {
	cfg       Config
	runID     string
	clock     types.Clock
	logger    *slog.Logger
	filter    types.Eligibility
	mapper    types.PathMapper
	transform types.Transform

	ran atomic.Bool

	fatalOnce sync.Once
	fatalErr  error
	abort     chan struct{}
}

// New validates config and builds the collaborators that were not supplied.
// A nil config is DefaultConfig, which still needs the two directories.
func New(config *Config) (*Coordinator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config

	if cfg.Workers < 1 {
		return nil, fmt.Errorf("coordinator: workers must be positive, got %d: %w", cfg.Workers, types.ErrInvalidInput)
	}
	if cfg.InputDir == "" {
		return nil, fmt.Errorf("coordinator: input directory required: %w", types.ErrInvalidInput)
	}
	if cfg.Mapper == nil && cfg.OutputDir == "" {
		return nil, fmt.Errorf("coordinator: output directory required: %w", types.ErrInvalidInput)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.StartGrace < 0 {
		cfg.StartGrace = 0
	}
	if cfg.DrainWait < 0 {
		cfg.DrainWait = 0
	}
	if cfg.Clock == nil {
		cfg.Clock = types.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	runID := uuid.NewString()
	c := &Coordinator{
		cfg:       cfg,
		runID:     runID,
		clock:     cfg.Clock,
		logger:    cfg.Logger.With(slog.String("run_id", runID)),
		filter:    cfg.Filter,
		mapper:    cfg.Mapper,
		transform: cfg.Transform,
		abort:     make(chan struct{}),
	}

	if c.filter == nil {
		c.filter = paths.NewExtensionFilter(cfg.Extensions)
	}
	if c.mapper == nil {
		mapper, err := paths.NewMapper(cfg.InputDir, cfg.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("coordinator: %w", err)
		}
		c.mapper = mapper
	}
	if c.transform == nil {
		opts := []imaging.Option{imaging.WithLogger(c.logger.With(slog.String("component", "imaging")))}
		if cfg.JPEGQuality != 0 {
			opts = append(opts, imaging.WithJPEGQuality(cfg.JPEGQuality))
		}
		c.transform = imaging.NewInverter(opts...)
	}
	return c, nil
}

// RunID returns the correlation id attached to every log line of the run
func (c *Coordinator) RunID() string {
	return c.runID
}

// Logger returns the run logger
func (c *Coordinator) Logger() *slog.Logger {
	return c.logger
}

// Run executes the job. Cancelling ctx interrupts it: the producer stops, the
// workers finish their current item and exit, and Run returns a summary with
// Interrupted set and a nil error. A fatal item failure under FailFast runs
// the same shutdown and is returned as the error.
func (c *Coordinator) Run(ctx context.Context) (Summary, error) {
	if !c.ran.CompareAndSwap(false, true) {
		return Summary{}, types.ErrAlreadyStarted
	}

	summary := Summary{
		RunID:     c.runID,
		InputDir:  c.cfg.InputDir,
		OutputDir: c.cfg.OutputDir,
		Workers:   c.cfg.Workers,
		StartedAt: c.clock.Now(),
	}
	c.logger.Info("run starting",
		slog.String("input_dir", c.cfg.InputDir),
		slog.String("output_dir", c.cfg.OutputDir),
		slog.Int("workers", c.cfg.Workers),
		slog.Int("queue_capacity", c.cfg.QueueCapacity),
		slog.Bool("fail_fast", c.cfg.FailFast),
	)

	q := queue.New(queue.WithCapacity(c.cfg.QueueCapacity), queue.WithLogger(c.logger.With(slog.String("component", "queue"))))

	prod, err := producer.New(q, producer.Config{
		Root:    c.cfg.InputDir,
		Filter:  c.filter,
		Mapper:  c.mapper,
		Exclude: []string{paths.NestedExclusion(c.cfg.InputDir, c.cfg.OutputDir)},
		Logger:  c.logger,
	})
	if err != nil {
		return summary, err
	}

	executor := retry.NewRetryExecutor(c.cfg.RetryPolicy,
		retry.WithClock(c.clock),
		retry.WithLogger(c.logger.With(slog.String("component", "retry"))),
	)
	pool, err := worker.NewPool(q, c.poolConfig(executor))
	if err != nil {
		return summary, err
	}

	if err := prod.Start(ctx); err != nil {
		return summary, fmt.Errorf("start producer: %w", err)
	}

	reason := c.supervise(ctx, q, prod, pool)
	if reason != ReasonCompleted {
		c.cancel(q, prod, pool)
	}

	// always join, producer first
	if err := prod.Wait(context.Background()); err != nil {
		c.logger.Error("producer join failed", slog.String("error", err.Error()))
	}
	if err := pool.Wait(context.Background()); err != nil {
		c.logger.Error("worker join failed", slog.String("error", err.Error()))
	}

	// a fatal failure can race natural completion on the last item
	var fatal error
	select {
	case <-c.abort:
		fatal = c.fatalErr
		reason = ReasonFailFast
	default:
	}

	c.fill(&summary, q, prod, pool)
	rs := executor.GetStats()
	summary.Attempts = rs.TotalAttempts
	summary.Retried = rs.TotalRetries
	summary.RetryWaitMS = rs.TotalRetryDelay.Milliseconds()
	summary.Reason = reason
	summary.Interrupted = reason != ReasonCompleted
	summary.FinishedAt = c.clock.Now()

	c.logger.Info("run finished",
		slog.String("reason", reason),
		slog.Int64("discovered", summary.Discovered),
		slog.Int64("processed", summary.Processed),
		slog.Int64("failed", summary.Failed),
		slog.Int64("skipped", summary.Skipped),
		slog.Int("final_queue_size", summary.FinalQueueSize),
		slog.Int64("retried", summary.Retried),
		slog.Duration("elapsed", summary.Elapsed()),
	)

	return summary, fatal
}

func (c *Coordinator) poolConfig(executor *retry.RetryExecutor) *worker.PoolConfig {
	strategy := errhandler.ContinueOnErrorStrategy
	if c.cfg.FailFast {
		strategy = errhandler.FailFastStrategy
	}
	return &worker.PoolConfig{
		Size:      c.cfg.Workers,
		Transform: c.transform,
		Executor:     executor,
		ErrorHandler: errhandler.NewHandler(strategy, c.logger.With(slog.String("component", "worker")), c.cfg.AbsorbReasons...),
		OnFatal:      c.reportFatal,
		Clock:        c.clock,
		Logger:       c.logger,
	}
}

// supervise starts the pool after the grace period and polls until the run
// completes naturally or has to be cancelled
func (c *Coordinator) supervise(ctx context.Context, q *queue.Queue, prod *producer.Producer, pool *worker.Pool) string {
	if err := types.Sleep(ctx, c.clock, c.cfg.StartGrace); err != nil {
		c.logger.Info("cancelled before workers started")
		return ReasonInterrupted
	}
	if err := pool.Start(ctx); err != nil {
		c.logger.Error("failed to start workers", slog.String("error", err.Error()))
		c.reportFatal(fmt.Errorf("start workers: %w", err))
		return ReasonFailFast
	}

	ticker := c.clock.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("cancellation requested")
			return ReasonInterrupted
		case <-c.abort:
			c.logger.Warn("aborting run after fatal failure")
			return ReasonFailFast
		case <-ticker.C():
			ticks++
			if prod.IsFinished() && q.IsFinished() {
				return ReasonCompleted
			}
			if c.cfg.ProgressEvery > 0 && ticks%c.cfg.ProgressEvery == 0 {
				c.progress(q, prod, pool)
			}
		}
	}
}

// cancel runs the shutdown sequence: stop discovery, hand every worker a
// sentinel, ask the pool to stop, give it DrainWait, then stop the queue
func (c *Coordinator) cancel(q *queue.Queue, prod *producer.Producer, pool *worker.Pool) {
	prod.Stop()
	for i := 0; i < pool.Size(); i++ {
		if err := q.AddSentinel(); err != nil {
			c.logger.Error("failed to push shutdown sentinel", slog.String("error", err.Error()))
		}
	}
	pool.Stop()

	c.drainWait()
	q.Stop()
	c.logger.Info("shutdown sequence complete", slog.Int("queue_size", q.Size()))
}

// drainWait gives stopped workers DrainWait to leave before the queue stops
func (c *Coordinator) drainWait() {
	if c.cfg.DrainWait <= 0 {
		return
	}
	timer := c.clock.NewTimer(c.cfg.DrainWait)
	defer timer.Stop()
	<-timer.C()
}

func (c *Coordinator) reportFatal(err error) {
	c.fatalOnce.Do(func() {
		c.fatalErr = err
		close(c.abort)
	})
}

func (c *Coordinator) progress(q *queue.Queue, prod *producer.Producer, pool *worker.Pool) {
	stats := pool.Stats()
	perWorker := make([]int64, len(stats.Workers))
	for i, ws := range stats.Workers {
		perWorker[i] = ws.Processed
	}
	c.logger.Info("progress",
		slog.Int("queue_size", q.Size()),
		slog.String("producer_state", prod.State().String()),
		slog.Int64("discovered", prod.Stats().Discovered),
		slog.Int64("processed", stats.Processed),
		slog.Int64("failed", stats.Failed),
		slog.Any("per_worker", perWorker),
	)
}

func (c *Coordinator) fill(s *Summary, q *queue.Queue, prod *producer.Producer, pool *worker.Pool) {
	ps := prod.Stats()
	s.Discovered = ps.Discovered
	s.MappingFailures = ps.MappingFailures
	s.WalkErrors = ps.WalkErrors
	s.FinalQueueSize = q.Size()

	stats := pool.Stats()
	s.Processed = stats.Processed
	s.Failed = stats.Failed
	s.Skipped = stats.Skipped
	s.WorkerStats = make([]WorkerSummary, len(stats.Workers))
	for i, ws := range stats.Workers {
		s.WorkerStats[i] = WorkerSummary{
			ID:        ws.ID,
			Processed: ws.Processed,
			Failed:    ws.Failed,
			Skipped:   ws.Skipped,
			Exit:      ws.ExitReason.String(),
		}
	}
}
