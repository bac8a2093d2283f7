// Package queue provides the bounded queue feeding leader refresh workers.
package queue

import (
	"context"
	"strconv"
	"sync"

	"github.com/lastofguss/tapd/pkg/metrics"
)

// Default queue configuration.
const defaultCapacity = 1024

// Job asks the workers to recompute the leader for one round.
type Job struct {
	RoundID int64
}

// Key identifies the job for pending-set collapsing: one refresh per round
// in flight at a time.
func (j Job) Key() string {
	return strconv.FormatInt(j.RoundID, 10)
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job. Returns false when the queue is full or closed.
	Enqueue(ctx context.Context, j Job) bool

	// Dequeue returns the channel workers consume jobs from. The channel is
	// closed when the queue is closed.
	Dequeue() <-chan Job

	// Len returns the current number of queued jobs.
	Len() int

	// Close stops accepting jobs and closes the dequeue channel once
	// drained.
	Close() error
}

// InMemoryQueue implements Queue on a buffered channel.
type InMemoryQueue struct {
	jobs   chan Job
	mu     sync.RWMutex
	closed bool
}

// Option applies a configuration option to the InMemoryQueue.
type Option func(*config)

type config struct {
	capacity int
}

// WithCapacity bounds the number of buffered jobs.
func WithCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// NewInMemoryQueue creates a queue with the configured capacity.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	cfg := config{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}
	metrics.UpdateRefreshQueueSize(0)
	return &InMemoryQueue{jobs: make(chan Job, cfg.capacity)}
}

// Enqueue adds a job without blocking. A full queue sheds the job; the
// caller keeps its pending-set entry released so a later tap re-triggers
// the refresh.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return false
	}
	select {
	case q.jobs <- j:
		metrics.UpdateRefreshQueueSize(len(q.jobs))
		return true
	case <-ctx.Done():
		return false
	default:
		metrics.RecordRefreshDropped()
		return false
	}
}

// Dequeue returns the job channel.
func (q *InMemoryQueue) Dequeue() <-chan Job {
	return q.jobs
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len() int {
	return len(q.jobs)
}

// Close stops accepting jobs. Jobs already queued remain readable until the
// channel drains.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}
