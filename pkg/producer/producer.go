package producer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/jzx17/imgqueue/internal/paths"
	"github.com/jzx17/imgqueue/pkg/types"
)

// Queue is the part of the work queue a producer drives
type Queue interface {
	SetProducerCount(n int) error
	Push(item types.WorkItem) error
	AddSentinel() error
	ProducerFinished() error
	Stop()
}

// State represents the producer lifecycle
type State int32

const (
	// StateIdle means Start has not been called
	StateIdle State = iota
	// StateRunning means the walk is in progress
	StateRunning
	// StateStopRequested means Stop was called or the context was cancelled
	// while running
	StateStopRequested
	// StateWalkCompleted means the walk ended and completion is being announced
	StateWalkCompleted
	// StateFinished means the sentinel was pushed and completion signalled
	StateFinished
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopRequested:
		return "stop_requested"
	case StateWalkCompleted:
		return "walk_completed"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Config configures a Producer
type Config struct {
	// Root is the directory walked for source files
	Root string

	// Filter decides which regular files become work items
	Filter types.Eligibility

	// Mapper derives each item's destination
	Mapper types.PathMapper

	// Exclude lists directories that are never descended into
	Exclude []string

	// Logger receives walk diagnostics; nil discards them
	Logger *slog.Logger
}

// Stats is a snapshot of producer counters
type Stats struct {
	State           State
	Scanned         int64
	Discovered      int64
	MappingFailures int64
	WalkErrors      int64
	Cancelled       bool
}

// Producer walks a source tree and pushes one work item per eligible file.
// It is the queue's only registered producer.
type Producer struct {
	queue   Queue
	root    string
	filter  types.Eligibility
	mapper  types.PathMapper
	exclude []string
	logger  *slog.Logger

	state     atomic.Int32
	stopping  atomic.Bool
	cancelled atomic.Bool
	stopOnce  sync.Once
	done      chan struct{}

	scanned         atomic.Int64
	discovered      atomic.Int64
	mappingFailures atomic.Int64
	walkErrors      atomic.Int64
}

var errStopped = errors.New("producer stopped")

// New creates a producer for q
func New(q Queue, cfg Config) (*Producer, error) {
	if q == nil {
		return nil, fmt.Errorf("producer: nil queue: %w", types.ErrInvalidInput)
	}
	if cfg.Root == "" {
		return nil, fmt.Errorf("producer: empty root: %w", types.ErrInvalidInput)
	}
	if cfg.Filter == nil || cfg.Mapper == nil {
		return nil, fmt.Errorf("producer: filter and mapper are required: %w", types.ErrInvalidInput)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	exclude := make([]string, 0, len(cfg.Exclude))
	for _, dir := range cfg.Exclude {
		if dir == "" {
			continue
		}
		if abs, err := filepath.Abs(dir); err == nil {
			exclude = append(exclude, abs)
		}
	}

	return &Producer{
		queue:   q,
		root:    filepath.Clean(cfg.Root),
		filter:  cfg.Filter,
		mapper:  cfg.Mapper,
		exclude: exclude,
		logger:  logger.With(slog.String("component", "producer")),
		done:    make(chan struct{}),
	}, nil
}

// Start registers the producer with the queue and launches the walk. The
// producer count is set before Start returns, so no worker can observe
// natural completion ahead of the first push.
func (p *Producer) Start(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return types.ErrAlreadyStarted
	}
	if err := p.queue.SetProducerCount(1); err != nil {
		p.state.Store(int32(StateIdle))
		return fmt.Errorf("register producer: %w", err)
	}
	if p.stopping.Load() {
		p.state.Store(int32(StateStopRequested))
	}

	p.logger.Info("producer started", slog.String("root", p.root))
	go p.run(types.WithTask(ctx, p))
	return nil
}

func (p *Producer) run(ctx context.Context) {
	defer close(p.done)

	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, walkErr error) error {
		return p.visit(ctx, path, d, walkErr)
	})
	if errors.Is(err, errStopped) {
		p.cancelled.Store(true)
		p.state.CompareAndSwap(int32(StateRunning), int32(StateStopRequested))
		p.logger.Info("walk cancelled", slog.Int64("discovered", p.discovered.Load()))
	} else if err != nil {
		p.walkErrors.Add(1)
		p.logger.Error("walk aborted", slog.String("error", err.Error()))
	}

	if !p.cancelled.Load() {
		p.state.CompareAndSwap(int32(StateRunning), int32(StateWalkCompleted))
	}
	p.finish()
}

func (p *Producer) visit(ctx context.Context, path string, d fs.DirEntry, walkErr error) error {
	if p.stopping.Load() || ctx.Err() != nil {
		return errStopped
	}

	if walkErr != nil {
		p.walkErrors.Add(1)
		p.logger.Warn("skipping unreadable path",
			slog.String("path", path),
			slog.String("error", walkErr.Error()),
		)
		if d == nil || d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	}

	if d.IsDir() {
		if path != p.root && p.isExcluded(path) {
			p.logger.Debug("skipping excluded directory", slog.String("path", path))
			return filepath.SkipDir
		}
		return nil
	}

	p.scanned.Add(1)
	if !p.isRegular(path, d) || !p.filter.IsEligible(path) {
		return nil
	}

	dst, err := p.mapper.MapOutputPath(ctx, path)
	if err != nil {
		p.mappingFailures.Add(1)
		p.logger.Warn("skipping file, no output path",
			slog.String("source", path),
			slog.String("error", err.Error()),
		)
		return nil
	}

	if err := p.queue.Push(types.NewWorkItem(path, dst)); err != nil {
		return fmt.Errorf("push %s: %w", path, err)
	}
	p.discovered.Add(1)
	return nil
}

// isRegular accepts regular files and symlinks that resolve to one
func (p *Producer) isRegular(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (p *Producer) isExcluded(path string) bool {
	if len(p.exclude) == 0 {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, dir := range p.exclude {
		if paths.IsUnder(abs, dir) {
			return true
		}
	}
	return false
}

// finish pushes the producer's sentinel and then signals completion
func (p *Producer) finish() {
	if err := p.queue.AddSentinel(); err != nil {
		p.logger.Error("failed to push sentinel", slog.String("error", err.Error()))
	}
	if err := p.queue.ProducerFinished(); err != nil {
		p.logger.Error("failed to signal completion", slog.String("error", err.Error()))
	}
	p.state.Store(int32(StateFinished))

	p.logger.Info("producer finished",
		slog.Int64("discovered", p.discovered.Load()),
		slog.Int64("mapping_failures", p.mappingFailures.Load()),
		slog.Int64("walk_errors", p.walkErrors.Load()),
		slog.Bool("cancelled", p.cancelled.Load()),
	)
}

// Stop requests cancellation and stops the queue so blocked workers wake.
// Only the first call has any effect.
func (p *Producer) Stop() {
	p.stopOnce.Do(func() {
		p.stopping.Store(true)
		p.state.CompareAndSwap(int32(StateRunning), int32(StateStopRequested))
		p.queue.Stop()
		p.logger.Info("producer stop requested")
	})
}

// Wait blocks until the walk goroutine has exited or ctx is done. Calling it
// with a context derived from the producer's own task returns
// types.ErrSelfJoin. Waiting on a producer that was never started returns nil.
func (p *Producer) Wait(ctx context.Context) error {
	if types.InTask(ctx, p) {
		return types.ErrSelfJoin
	}
	if p.State() == StateIdle {
		return nil
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the walk goroutine exits
func (p *Producer) Done() <-chan struct{} {
	return p.done
}

// State returns the current lifecycle state
func (p *Producer) State() State {
	return State(p.state.Load())
}

// IsFinished reports whether completion has been signalled
func (p *Producer) IsFinished() bool {
	return p.State() == StateFinished
}

// Stats returns a snapshot of the producer counters
func (p *Producer) Stats() Stats {
	return Stats{
		State:           p.State(),
		Scanned:         p.scanned.Load(),
		Discovered:      p.discovered.Load(),
		MappingFailures: p.mappingFailures.Load(),
		WalkErrors:      p.walkErrors.Load(),
		Cancelled:       p.cancelled.Load(),
	}
}
