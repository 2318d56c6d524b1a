package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	errhandler "github.com/jzx17/imgqueue/internal/errors"
	"github.com/jzx17/imgqueue/pkg/retry"
	"github.com/jzx17/imgqueue/pkg/types"
)

// Source is the queue side a worker drains
type Source interface {
	Pop() (types.WorkItem, bool)
}

// WorkerState defines the state of a Worker
type WorkerState int32

const (
	// WorkerStateIdle represents a worker that has not been started
	WorkerStateIdle WorkerState = iota
	// WorkerStateRunning represents a worker draining the queue
	WorkerStateRunning
	// WorkerStateStopping represents a worker leaving its loop
	WorkerStateStopping
	// WorkerStateStopped represents a worker whose goroutine has exited
	WorkerStateStopped
)

// String returns the string representation of WorkerState
func (ws WorkerState) String() string {
	switch ws {
	case WorkerStateIdle:
		return "idle"
	case WorkerStateRunning:
		return "running"
	case WorkerStateStopping:
		return "stopping"
	case WorkerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ExitReason records why a worker left its loop
type ExitReason int32

const (
	// ExitNone means the worker has not exited
	ExitNone ExitReason = iota
	// ExitSentinel means the worker popped a sentinel
	ExitSentinel
	// ExitDrained means the queue reported no more work
	ExitDrained
	// ExitStopped means a stop request was observed at the loop top
	ExitStopped
)

// String returns the string representation of ExitReason
func (r ExitReason) String() string {
	switch r {
	case ExitNone:
		return "none"
	case ExitSentinel:
		return "sentinel"
	case ExitDrained:
		return "drained"
	case ExitStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config holds the collaborators of a worker
type Config struct {
	// Transform is applied to every work item
	Transform types.Transform

	// Executor runs the transform under a retry policy. Nil means one attempt.
	Executor *retry.RetryExecutor

	// ErrorHandler decides what a failed item means. Nil logs and drops it.
	ErrorHandler errhandler.ErrorHandler

	// OnFatal is called with the error an ErrorHandler refused to absorb
	OnFatal func(error)

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	// Logger receives per-item logs; nil discards them
	Logger *slog.Logger
}

// Worker drains a queue and applies a transform to each item
type Worker struct {
	id        int
	queue     Source
	transform types.Transform
	executor  *retry.RetryExecutor
	handler   errhandler.ErrorHandler
	onFatal   func(error)
	clock     types.Clock
	logger    *slog.Logger

	state      atomic.Int32
	exitReason atomic.Int32
	stopping   atomic.Bool
	stopOnce   sync.Once
	done       chan struct{}

	// cancels the transform context; set by Start
	mu     sync.Mutex
	cancel context.CancelFunc

	// statistics, owned by this worker
	processed    atomic.Int64
	failed       atomic.Int64
	skipped      atomic.Int64
	lastItemTime atomic.Int64 // Unix nanosecond timestamp
}

// NewWorker creates a worker with id draining q
func NewWorker(id int, q Source, cfg Config) (*Worker, error) {
	if q == nil {
		return nil, fmt.Errorf("worker %d: nil queue: %w", id, types.ErrInvalidInput)
	}
	if cfg.Transform == nil {
		return nil, fmt.Errorf("worker %d: nil transform: %w", id, types.ErrInvalidInput)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = types.NewRealClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(slog.String("component", "worker"), slog.Int("worker_id", id))

	executor := cfg.Executor
	if executor == nil {
		executor = retry.NewRetryExecutor(nil, retry.WithClock(clock), retry.WithLogger(logger))
	}
	handler := cfg.ErrorHandler
	if handler == nil {
		handler = errhandler.NewContinueOnErrorHandler(&errhandler.ContinueOnErrorConfig{Logger: logger})
	}

	return &Worker{
		id:        id,
		queue:     q,
		transform: cfg.Transform,
		executor:  executor,
		handler:   handler,
		onFatal:   cfg.OnFatal,
		clock:     clock,
		logger:    logger,
		done:      make(chan struct{}),
	}, nil
}

// ID returns the Worker ID
func (w *Worker) ID() int {
	return w.id
}

// State returns the current Worker state
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// ExitReason returns why the worker left its loop, or ExitNone
func (w *Worker) ExitReason() ExitReason {
	return ExitReason(w.exitReason.Load())
}

// Start launches the worker goroutine. ctx is checked at the top of every
// loop iteration; the transform itself runs under a context detached from
// ctx that is cancelled only by Stop, so an in-flight item always finishes.
func (w *Worker) Start(ctx context.Context) error {
	if !w.state.CompareAndSwap(int32(WorkerStateIdle), int32(WorkerStateRunning)) {
		return types.ErrAlreadyStarted
	}

	tctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.mu.Lock()
	w.cancel = cancel
	stopped := w.stopping.Load()
	w.mu.Unlock()
	if stopped {
		cancel()
	}

	go w.run(ctx, types.WithTask(tctx, w))
	return nil
}

func (w *Worker) run(ctx, tctx context.Context) {
	defer close(w.done)
	defer func() {
		w.mu.Lock()
		if w.cancel != nil {
			w.cancel()
		}
		w.mu.Unlock()
		w.state.Store(int32(WorkerStateStopped))
	}()

	w.logger.Debug("worker started")
	for {
		if w.stopping.Load() || ctx.Err() != nil {
			w.exit(ExitStopped)
			return
		}

		item, ok := w.queue.Pop()
		if !ok {
			w.exit(ExitDrained)
			return
		}
		if item.IsSentinel() {
			w.exit(ExitSentinel)
			return
		}
		if w.stopping.Load() {
			w.skipped.Add(1)
			w.logger.Debug("skipping item after stop", slog.String("source", item.Source))
			continue
		}

		w.process(tctx, item)
	}
}

func (w *Worker) exit(reason ExitReason) {
	w.state.Store(int32(WorkerStateStopping))
	w.exitReason.Store(int32(reason))
	w.logger.Info("worker exiting",
		slog.String("reason", reason.String()),
		slog.Int64("processed", w.processed.Load()),
		slog.Int64("failed", w.failed.Load()),
	)
}

// process runs one item through the executor and records the outcome
func (w *Worker) process(ctx context.Context, item types.WorkItem) {
	start := w.clock.Now()
	w.lastItemTime.Store(start.UnixNano())

	attempts := 0
	err := w.executor.Execute(ctx, "transform", func(ctx context.Context) error {
		attempts++
		return w.executeItem(ctx, item)
	})
	elapsed := w.clock.Since(start)

	if err == nil {
		w.processed.Add(1)
		w.logger.Info("item processed",
			slog.String("source", item.Source),
			slog.Duration("elapsed", elapsed),
		)
		return
	}

	w.failed.Add(1)
	errCtx := errhandler.NewErrorContext(err, "transform", item)
	errCtx.WorkerID = w.id
	errCtx.Attempts = attempts
	errCtx.Metadata["elapsed"] = elapsed

	if fatal := w.handler.HandleError(ctx, errCtx); fatal != nil && w.onFatal != nil {
		w.onFatal(fatal)
	}
}

// executeItem executes the transform with panic recovery support
func (w *Worker) executeItem(ctx context.Context, item types.WorkItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)

			var cause error
			switch v := r.(type) {
			case error:
				cause = fmt.Errorf("panic: %w", v)
			default:
				cause = fmt.Errorf("panic: %v", v)
			}
			err = types.NewItemError("transform", item.Source, types.ReasonPanic, cause).
				WithContext("stack_trace", string(buf[:n])).
				WithContext("worker_id", w.id)
		}
	}()

	return w.transform.Transform(ctx, item.Source, item.Destination)
}

// Stop requests the worker to exit at its next loop boundary and aborts any
// retry wait in progress. A worker blocked in Pop leaves once the queue hands
// it an item, a sentinel or a terminal signal. Only the first call has any effect.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.stopping.Store(true)
		w.mu.Lock()
		if w.cancel != nil {
			w.cancel()
		}
		w.mu.Unlock()
		w.logger.Debug("worker stop requested")
	})
}

// Wait blocks until the worker goroutine exits or ctx is done. A context
// carrying this worker's task marker yields types.ErrSelfJoin. Waiting on a
// worker that was never started returns nil.
func (w *Worker) Wait(ctx context.Context) error {
	if types.InTask(ctx, w) {
		return types.ErrSelfJoin
	}
	if w.State() == WorkerStateIdle {
		return nil
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the worker goroutine exits
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Stats gets Worker statistics
func (w *Worker) Stats() WorkerStats {
	var last time.Time
	if ns := w.lastItemTime.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return WorkerStats{
		ID:           w.id,
		State:        w.State(),
		ExitReason:   w.ExitReason(),
		Processed:    w.processed.Load(),
		Failed:       w.failed.Load(),
		Skipped:      w.skipped.Load(),
		LastItemTime: last,
	}
}

// WorkerStats defines Worker statistics
type WorkerStats struct {
	ID           int
	State        WorkerState
	ExitReason   ExitReason
	Processed    int64
	Failed       int64
	Skipped      int64
	LastItemTime time.Time
}

// GetSuccessRate gets the success rate
func (ws WorkerStats) GetSuccessRate() float64 {
	total := ws.Processed + ws.Failed
	if total == 0 {
		return 0
	}
	return float64(ws.Processed) / float64(total)
}
