package logger_test

import (
	"context"
	"testing"

	"github.com/recsyscourse/requestor/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given an initialized global logger", t, func() {
		So(logger.Init(), ShouldBeNil)

		Convey("When fetching the global instance", func() {
			l := logger.Get()

			Convey("Then it should log without panicking", func() {
				So(func() {
					l.Info(context.Background(), "hello",
						logger.String("k", "v"),
						logger.Int("n", 1),
						logger.Float64("f", 1.5),
					)
				}, ShouldNotPanic)
			})

			Convey("Then Named should return a scoped logger", func() {
				named := l.Named("gunner")
				So(named, ShouldNotBeNil)
				So(func() { named.Debug(context.Background(), "scoped") }, ShouldNotPanic)
			})
		})

		Convey("When setting the level from a string", func() {
			So(logger.SetLevelString("debug"), ShouldBeNil)
			So(logger.SetLevelString("WARN"), ShouldBeNil)
			So(logger.SetLevelString(""), ShouldBeNil)

			Convey("Then unknown levels should be rejected", func() {
				So(logger.SetLevelString("loud"), ShouldNotBeNil)
			})
		})
	})
}
