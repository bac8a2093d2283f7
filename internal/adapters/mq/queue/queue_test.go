package queue_test

import (
	"context"
	"testing"

	"github.com/lastofguss/tapd/internal/adapters/mq/queue"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a queue with capacity 2", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(2))

		Convey("When jobs fit the capacity", func() {
			So(q.Enqueue(ctx, queue.Job{RoundID: 1}), ShouldBeTrue)
			So(q.Enqueue(ctx, queue.Job{RoundID: 2}), ShouldBeTrue)
			So(q.Len(), ShouldEqual, 2)

			Convey("Then a third job is shed without blocking", func() {
				So(q.Enqueue(ctx, queue.Job{RoundID: 3}), ShouldBeFalse)
			})

			Convey("And dequeue yields them in order", func() {
				So((<-q.Dequeue()).RoundID, ShouldEqual, 1)
				So((<-q.Dequeue()).RoundID, ShouldEqual, 2)
			})
		})

		Convey("When the queue is closed", func() {
			So(q.Enqueue(ctx, queue.Job{RoundID: 1}), ShouldBeTrue)
			So(q.Close(), ShouldBeNil)

			Convey("Then new jobs are rejected", func() {
				So(q.Enqueue(ctx, queue.Job{RoundID: 2}), ShouldBeFalse)
			})

			Convey("And queued jobs drain before the channel closes", func() {
				job, ok := <-q.Dequeue()
				So(ok, ShouldBeTrue)
				So(job.RoundID, ShouldEqual, 1)

				_, ok = <-q.Dequeue()
				So(ok, ShouldBeFalse)
			})

			Convey("And closing again is a no-op", func() {
				So(q.Close(), ShouldBeNil)
			})
		})
	})
}

func TestJobKey(t *testing.T) {
	Convey("Given refresh jobs", t, func() {
		Convey("Then keys are stable per round", func() {
			So(queue.Job{RoundID: 7}.Key(), ShouldEqual, "7")
			So(queue.Job{RoundID: 7}.Key(), ShouldEqual, queue.Job{RoundID: 7}.Key())
			So(queue.Job{RoundID: 8}.Key(), ShouldNotEqual, queue.Job{RoundID: 7}.Key())
		})
	})
}
