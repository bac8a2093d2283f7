package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lastofguss/tapd/internal/adapters/mq/queue"
	"github.com/lastofguss/tapd/internal/adapters/mq/worker"
	"github.com/lastofguss/tapd/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

type recordingRefresher struct {
	mu     sync.Mutex
	rounds []int64
}

func (r *recordingRefresher) RefreshLeader(_ context.Context, roundID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rounds = append(r.rounds, roundID)
	return nil
}

func (r *recordingRefresher) seen() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, len(r.rounds))
	copy(out, r.rounds)
	return out
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestPool(t *testing.T) {
	Convey("Given a running pool of two workers", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		pending := dedupe.NewPendingSet()
		refresher := &recordingRefresher{}
		pool := worker.NewPool(2, q, refresher, pending)
		pool.Start(ctx)

		Convey("When jobs are enqueued through the pending set", func() {
			for _, id := range []int64{1, 2, 3} {
				job := queue.Job{RoundID: id}
				So(pending.SeenAndRecord(ctx, job.Key()), ShouldBeFalse)
				So(q.Enqueue(ctx, job), ShouldBeTrue)
			}

			Convey("Then every round is refreshed", func() {
				So(waitFor(func() bool { return len(refresher.seen()) == 3 }), ShouldBeTrue)
			})

			Convey("And the pending slots are released", func() {
				So(waitFor(func() bool { return pending.Size() == 0 }), ShouldBeTrue)
			})
		})

		Reset(func() {
			_ = q.Close()
			pool.Wait()
		})
	})
}
