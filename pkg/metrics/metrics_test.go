package metrics

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRecorders(t *testing.T) {
	Convey("Given the metrics package", t, func() {
		Convey("Then the registry is available for scraping", func() {
			So(GetRegistry(), ShouldNotBeNil)
			_, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
		})

		Convey("Then every recorder is safe to call", func() {
			So(RecordTapAccepted, ShouldNotPanic)
			So(func() { RecordTapRejected("round_not_active") }, ShouldNotPanic)
			So(func() { RecordIncrementLatency(0.42) }, ShouldNotPanic)
			So(RecordCounterCreated, ShouldNotPanic)
			So(RecordRefresh, ShouldNotPanic)
			So(RecordRefreshError, ShouldNotPanic)
			So(RecordRefreshDropped, ShouldNotPanic)
			So(func() { UpdateRefreshQueueSize(3) }, ShouldNotPanic)
			So(func() { UpdateRefreshWorkerCount(4) }, ShouldNotPanic)
			So(func() { UpdateStoreShardCount(8) }, ShouldNotPanic)
			So(func() { RecordHTTPRequest("tap", "PUT", "200") }, ShouldNotPanic)
			So(func() { RecordHTTPRequestDuration("tap", "PUT", "200", 1.5) }, ShouldNotPanic)
			So(func() { UpdateSystemMemoryUsage(1 << 20) }, ShouldNotPanic)
			So(func() { UpdateSystemGoroutineCount(10) }, ShouldNotPanic)
		})

		Convey("Then recorded series show up in a gather", func() {
			RecordTapAccepted()
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)

			names := make(map[string]bool, len(families))
			for _, f := range families {
				names[f.GetName()] = true
			}
			So(names["tapd_taps_accepted_total"], ShouldBeTrue)
		})
	})
}
