// Package worker runs the pool that refreshes cached round leaders.
package worker

import (
	"context"
	"strconv"
	"sync"

	"github.com/lastofguss/tapd/internal/adapters/mq/queue"
	"github.com/lastofguss/tapd/internal/domain/dedupe"
	"github.com/lastofguss/tapd/pkg/logger"
	"github.com/lastofguss/tapd/pkg/metrics"
)

// Refresher recomputes the leader for one round and stores the result.
type Refresher interface {
	RefreshLeader(ctx context.Context, roundID int64) error
}

// Pool consumes refresh jobs from the queue. The pending set is released
// after each job so the next tap on that round can schedule a new refresh.
type Pool struct {
	count     int
	jobs      <-chan queue.Job
	refresher Refresher
	pending   dedupe.Deduper

	wg     sync.WaitGroup
	logger logger.Logger
}

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithLogger sets a custom logger for the pool.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPool creates a pool of count workers reading from q.
func NewPool(count int, q queue.Queue, refresher Refresher, pending dedupe.Deduper, opts ...Option) *Pool {
	if count < 1 {
		count = 1
	}
	p := &Pool{
		count:     count,
		jobs:      q.Dequeue(),
		refresher: refresher,
		pending:   pending,
		logger:    logger.Get().Named("refresh"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers. They exit when ctx is canceled or the queue
// channel is closed.
func (p *Pool) Start(ctx context.Context) {
	metrics.UpdateRefreshWorkerCount(p.count)
	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.run(ctx, "refresh-"+strconv.Itoa(i))
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, name string) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.process(ctx, name, job)
		}
	}
}

func (p *Pool) process(ctx context.Context, name string, job queue.Job) {
	// Release the pending slot before refreshing, not after: a tap landing
	// mid-refresh must be able to schedule another pass, otherwise its
	// effect could be missed by the scan already underway.
	p.pending.Unrecord(ctx, job.Key())

	if err := p.refresher.RefreshLeader(ctx, job.RoundID); err != nil {
		metrics.RecordRefreshError()
		p.logger.Error(ctx, "leader refresh failed",
			logger.String("worker", name),
			logger.Int64("round_id", job.RoundID),
			logger.Error(err),
		)
		return
	}
	metrics.RecordRefresh()
}
