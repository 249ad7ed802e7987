package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/recsyscourse/requestor/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManager(t *testing.T) {
	Convey("Given a metrics manager on a fresh registry", t, func() {
		reg := prometheus.NewRegistry()
		m := metrics.NewManager(metrics.WithRegistry(reg))
		So(m, ShouldNotBeNil)

		Convey("Then the registry should gather the registered families", func() {
			families, err := reg.Gather()
			So(err, ShouldBeNil)
			// Counters without observations are still registered; gauges show up.
			So(families, ShouldNotBeNil)
		})
	})

	Convey("Given the package-level helpers", t, func() {
		Convey("When recording pipeline events", func() {
			So(func() {
				metrics.RecordTrialStarted()
				metrics.RecordTrialFinished("success")
				metrics.RecordTrialRejected()
				metrics.RecordTrialDuration(12.5)
				metrics.RecordMetricsRecorded(3)
			}, ShouldNotPanic)
		})

		Convey("When recording poller events", func() {
			So(func() {
				metrics.RecordPollRequest()
				metrics.RecordPollRetry()
				metrics.RecordPollRound(42)
				metrics.RecordPollFailure("timeout")
			}, ShouldNotPanic)
		})

		Convey("When recording leaderboard and HTTP events", func() {
			So(func() {
				metrics.RecordLeaderboardRecompute()
				metrics.UpdateLeaderboardRows(10)
				metrics.RecordHTTPRequest("leaderboard", "GET", "200")
				metrics.RecordHTTPRequestDuration("leaderboard", "GET", "200", 3.5)
			}, ShouldNotPanic)
		})

		Convey("Then the custom registry should be exposed", func() {
			So(metrics.GetRegistry(), ShouldNotBeNil)
		})
	})
}
