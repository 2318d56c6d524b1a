package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	errhandler "github.com/jzx17/imgqueue/internal/errors"
	"github.com/jzx17/imgqueue/pkg/retry"
	"github.com/jzx17/imgqueue/pkg/types"
)

// DefaultPoolSize is the worker count used when none is configured
const DefaultPoolSize = 4

// PoolConfig defines configuration for a worker pool
type PoolConfig struct {
	// Size is the number of workers
	Size int

	// Transform is shared by every worker and must be safe for concurrent use
	Transform types.Transform

	// Executor wraps each transform call. It is shared by all workers.
	Executor *retry.RetryExecutor

	// ErrorHandler is the error handler
	ErrorHandler errhandler.ErrorHandler

	// OnFatal receives errors the handler refuses to absorb
	OnFatal func(error)

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	// Logger is passed to every worker
	Logger *slog.Logger
}

// DefaultPoolConfig returns default configuration
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Size:  DefaultPoolSize,
		Clock: types.NewRealClock(),
	}
}

// Pool is a fixed set of workers draining one queue
type Pool struct {
	workers []*Worker
	logger  *slog.Logger

	// 0: idle, 1: running, 2: stopped
	state    atomic.Int32
	stopOnce sync.Once
}

// PoolStats aggregates the statistics of every worker
type PoolStats struct {
	Size      int
	Processed int64
	Failed    int64
	Skipped   int64
	Workers   []WorkerStats
}

// NewPool creates a pool of config.Size workers draining q. A nil config
// uses DefaultPoolConfig, which still needs a Transform.
func NewPool(q Source, config *PoolConfig) (*Pool, error) {
	if config == nil {
		config = DefaultPoolConfig()
	}
	cfg := *config
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d: %w", cfg.Size, types.ErrInvalidInput)
	}
	if cfg.Clock == nil {
		cfg.Clock = types.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Executor == nil {
		cfg.Executor = retry.NewRetryExecutor(nil, retry.WithClock(cfg.Clock), retry.WithLogger(cfg.Logger))
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = errhandler.NewContinueOnErrorHandler(&errhandler.ContinueOnErrorConfig{Logger: cfg.Logger})
	}

	p := &Pool{
		workers: make([]*Worker, 0, cfg.Size),
		logger:  cfg.Logger.With(slog.String("component", "pool")),
	}
	for i := 0; i < cfg.Size; i++ {
		w, err := NewWorker(i, q, Config{
			Transform:    cfg.Transform,
			Executor:     cfg.Executor,
			ErrorHandler: cfg.ErrorHandler,
			OnFatal:      cfg.OnFatal,
			Clock:        cfg.Clock,
			Logger:       cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		p.workers = append(p.workers, w)
	}
	return p, nil
}

// Start launches every worker
func (p *Pool) Start(ctx context.Context) error {
	if !p.state.CompareAndSwap(0, 1) {
		return types.ErrAlreadyStarted
	}
	for _, w := range p.workers {
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start worker %d: %w", w.ID(), err)
		}
	}
	p.logger.Info("worker pool started", slog.Int("size", len(p.workers)))
	return nil
}

// Stop asks every worker to exit. It does not wait; call Wait for that.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.state.Store(2)
		for _, w := range p.workers {
			w.Stop()
		}
		p.logger.Info("worker pool stop requested")
	})
}

// Wait blocks until every worker has exited or ctx is done. Waiting from
// inside one of the pool's own workers returns types.ErrSelfJoin.
func (p *Pool) Wait(ctx context.Context) error {
	for _, w := range p.workers {
		if types.InTask(ctx, w) {
			return types.ErrSelfJoin
		}
	}
	for _, w := range p.workers {
		if err := w.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return len(p.workers)
}

// Workers returns the pool's workers
func (p *Pool) Workers() []*Worker {
	out := make([]*Worker, len(p.workers))
	copy(out, p.workers)
	return out
}

// Running returns the number of workers whose goroutine has not exited
func (p *Pool) Running() int {
	n := 0
	for _, w := range p.workers {
		switch w.State() {
		case WorkerStateRunning, WorkerStateStopping:
			n++
		}
	}
	return n
}

// Stats returns aggregated worker statistics
func (p *Pool) Stats() PoolStats {
	stats := PoolStats{Size: len(p.workers), Workers: p.WorkerStats()}
	for _, ws := range stats.Workers {
		stats.Processed += ws.Processed
		stats.Failed += ws.Failed
		stats.Skipped += ws.Skipped
	}
	return stats
}

// WorkerStats gets statistics for all workers
func (p *Pool) WorkerStats() []WorkerStats {
	stats := make([]WorkerStats, len(p.workers))
	for i, w := range p.workers {
		stats[i] = w.Stats()
	}
	return stats
}
