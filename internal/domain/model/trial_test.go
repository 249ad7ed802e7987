package model_test

import (
	"testing"

	"github.com/recsyscourse/requestor/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTrialStatus(t *testing.T) {
	Convey("Given the trial lifecycle states", t, func() {
		Convey("Then waiting and started should not be terminal", func() {
			So(model.IsTerminal(model.TrialStatusWaiting), ShouldBeFalse)
			So(model.IsTerminal(model.TrialStatusStarted), ShouldBeFalse)
		})

		Convey("Then success and failed should be terminal", func() {
			So(model.IsTerminal(model.TrialStatusSuccess), ShouldBeTrue)
			So(model.IsTerminal(model.TrialStatusFailed), ShouldBeTrue)
		})

		Convey("Then only the four known states should be valid", func() {
			So(model.ValidTrialStatus(model.TrialStatusWaiting), ShouldBeTrue)
			So(model.ValidTrialStatus(model.TrialStatusStarted), ShouldBeTrue)
			So(model.ValidTrialStatus(model.TrialStatusSuccess), ShouldBeTrue)
			So(model.ValidTrialStatus(model.TrialStatusFailed), ShouldBeTrue)
			So(model.ValidTrialStatus(model.TrialStatus("running")), ShouldBeFalse)
			So(model.ValidTrialStatus(model.TrialStatus("")), ShouldBeFalse)
		})
	})

	Convey("Given a fresh trial", t, func() {
		trial := model.Trial{Status: model.TrialStatusWaiting}

		Convey("Then FinishedAt should be unset", func() {
			So(trial.FinishedAt, ShouldBeNil)
		})
	})
}
