package queue

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/jzx17/imgqueue/pkg/types"
)

// Option configures a Queue
type Option func(*Queue)

// WithCapacity bounds the queue. Push blocks while the queue holds capacity
// items and has not been stopped. Zero or negative means unbounded.
func WithCapacity(capacity int) Option {
	return func(q *Queue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithLogger sets the logger used for push/pop tracing
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// Stats is a point-in-time snapshot of queue counters
type Stats struct {
	Size            int
	Capacity        int
	Pushed          int64
	Popped          int64
	Sentinels       int64
	ActiveProducers int
	Stopped         bool
}

// Queue is the FIFO mailbox shared by one producer and the worker pool.
//
// All fields below mu are guarded by it. notEmpty is broadcast whenever a
// terminal condition is reached (last producer finished, stop) and signalled
// once per push; notFull is only waited on by a bounded queue.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	items           []types.WorkItem
	capacity        int
	activeProducers int
	countSet        bool
	finishedCalls   int
	stopped         bool

	pushed    int64
	popped    int64
	sentinels int64

	logger *slog.Logger
}

// New creates an empty queue with no registered producers
func New(opts ...Option) *Queue {
	q := &Queue{
		items:  make([]types.WorkItem, 0, 64),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Push appends item to the tail and wakes one blocked popper. On a bounded
// queue it waits for room unless the queue is stopped; a stopped queue
// accepts the item without blocking so late sentinels still land.
func (q *Queue) Push(item types.WorkItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.capacity > 0 && len(q.items) >= q.capacity && !q.stopped {
		q.notFull.Wait()
	}

	q.items = append(q.items, item)
	q.pushed++
	if item.IsSentinel() {
		q.sentinels++
		q.logger.Debug("sentinel added", slog.Int("queue_size", len(q.items)))
	} else {
		q.logger.Debug("item queued",
			slog.String("source", item.Source),
			slog.Int("queue_size", len(q.items)),
		)
	}
	q.notEmpty.Signal()
	return nil
}

// Pop removes the head item. It blocks while the queue is empty, a producer
// is still active and the queue is not stopped. The boolean is false when no
// more work can arrive.
func (q *Queue) Pop() (types.WorkItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && q.activeProducers > 0 && !q.stopped {
		q.notEmpty.Wait()
	}

	if len(q.items) == 0 {
		return types.WorkItem{}, false
	}

	item := q.items[0]
	q.items[0] = types.WorkItem{}
	q.items = q.items[1:]
	q.popped++
	if len(q.items) == 0 {
		// reclaim the backing array once drained
		q.items = q.items[:0:0]
	}

	if q.capacity > 0 {
		q.notFull.Signal()
	}

	if !item.IsSentinel() {
		q.logger.Debug("item taken",
			slog.String("source", item.Source),
			slog.Int("queue_size", len(q.items)),
		)
	}
	return item, true
}

// SetProducerCount registers how many ProducerFinished calls to expect. It
// may be called once, before any producer signals completion.
func (q *Queue) SetProducerCount(n int) error {
	if n < 0 {
		return fmt.Errorf("producer count %d: %w", n, types.ErrInvalidInput)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.countSet || q.finishedCalls > 0 {
		return types.ErrProducerCountLocked
	}
	q.countSet = true
	q.activeProducers = n
	q.logger.Debug("producer count set", slog.Int("producers", n))
	if n == 0 {
		q.notEmpty.Broadcast()
	}
	return nil
}

// ProducerFinished records one producer's completion. The last one wakes
// every blocked popper so each can observe the terminal condition.
func (q *Queue) ProducerFinished() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.activeProducers <= 0 {
		return types.ErrNoActiveProducers
	}
	q.activeProducers--
	q.finishedCalls++
	q.logger.Debug("producer finished", slog.Int("remaining", q.activeProducers))

	if q.activeProducers == 0 {
		q.notEmpty.Broadcast()
	}
	return nil
}

// AddSentinel pushes one termination marker
func (q *Queue) AddSentinel() error {
	return q.Push(types.Sentinel())
}

// Stop marks the queue stopped and wakes all waiters. Pops on an empty
// stopped queue return immediately. Calling Stop again has no effect.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return
	}
	q.stopped = true
	q.logger.Debug("queue stopped", slog.Int("queue_size", len(q.items)))
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Size returns the number of queued items, sentinels included
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsFinished reports whether the queue is empty with no active producers.
// It is a snapshot for progress reporting, not a substitute for Pop.
func (q *Queue) IsFinished() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0 && q.activeProducers == 0
}

// IsStopped reports whether Stop has been called
func (q *Queue) IsStopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

// Capacity returns the bound, or 0 for an unbounded queue
func (q *Queue) Capacity() int {
	return q.capacity
}

// Stats returns a snapshot of the queue counters
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Size:            len(q.items),
		Capacity:        q.capacity,
		Pushed:          q.pushed,
		Popped:          q.popped,
		Sentinels:       q.sentinels,
		ActiveProducers: q.activeProducers,
		Stopped:         q.stopped,
	}
}
