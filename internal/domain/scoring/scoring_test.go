package scoring_test

import (
	"testing"

	"github.com/lastofguss/tapd/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestScore(t *testing.T) {
	Convey("Given the tap score function", t, func() {
		Convey("When scoring known counts", func() {
			Convey("Then it should match count + floor(count/11)*10", func() {
				So(scoring.Score(0), ShouldEqual, 0)
				So(scoring.Score(1), ShouldEqual, 1)
				So(scoring.Score(10), ShouldEqual, 10)
				So(scoring.Score(11), ShouldEqual, 21)
				So(scoring.Score(12), ShouldEqual, 22)
				So(scoring.Score(21), ShouldEqual, 31)
				So(scoring.Score(22), ShouldEqual, 32)
				So(scoring.Score(33), ShouldEqual, 63)
				So(scoring.Score(100), ShouldEqual, 190)
			})
		})

		Convey("When counts increase one by one", func() {
			Convey("Then the score never decreases", func() {
				prev := scoring.Score(0)
				for count := int64(1); count <= 1000; count++ {
					next := scoring.Score(count)
					So(next, ShouldBeGreaterThanOrEqualTo, prev)
					prev = next
				}
			})
		})

		Convey("When the same count is scored twice", func() {
			Convey("Then the result is identical", func() {
				So(scoring.Score(42), ShouldEqual, scoring.Score(42))
			})
		})
	})
}
