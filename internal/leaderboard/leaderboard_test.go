package leaderboard

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/recsyscourse/requestor/internal/domain/model"
	"github.com/recsyscourse/requestor/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type stubSource struct {
	global  []model.GlobalLeaderboardRow
	byModel []model.ModelLeaderboardRow
	err     error
}

func (s *stubSource) GlobalLeaderboardRows(_ context.Context, _ string) ([]model.GlobalLeaderboardRow, error) {
	return s.global, s.err
}

func (s *stubSource) ByModelLeaderboardRows(_ context.Context, _ string) ([]model.ModelLeaderboardRow, error) {
	return s.byModel, s.err
}

func ptrFloat(v float64) *float64 { return &v }

func ptrTime(v time.Time) *time.Time { return &v }

func TestGlobalOrdering(t *testing.T) {
	Convey("Given teams with scores, failed-only history and no history", t, func() {
		early := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		late := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

		src := &stubSource{global: []model.GlobalLeaderboardRow{
			{TeamName: "idlers"},
			{TeamName: "crash-dummies", NAttempts: 4, LastAttempt: ptrTime(early)},
			{TeamName: "winners", BestScore: ptrFloat(0.50), NAttempts: 3, LastAttempt: ptrTime(late)},
		}}
		svc := New(src)

		Convey("When the global leaderboard is computed", func() {
			rows, err := svc.Global(context.Background(), "MAP@10")

			Convey("Then scored teams precede null-score teams", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 3)
				So(rows[0].TeamName, ShouldEqual, "winners")
			})

			Convey("Then null-score teams are ordered by last attempt, attemptless last", func() {
				So(rows[1].TeamName, ShouldEqual, "crash-dummies")
				So(rows[2].TeamName, ShouldEqual, "idlers")
			})
		})
	})

	Convey("Given two teams with equal best scores", t, func() {
		early := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		late := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)

		src := &stubSource{global: []model.GlobalLeaderboardRow{
			{TeamName: "late-movers", BestScore: ptrFloat(0.42), LastAttempt: ptrTime(late)},
			{TeamName: "first-movers", BestScore: ptrFloat(0.42), LastAttempt: ptrTime(early)},
		}}
		svc := New(src)

		Convey("When the global leaderboard is computed", func() {
			rows, err := svc.Global(context.Background(), "MAP@10")

			Convey("Then the earlier last attempt ranks first", func() {
				So(err, ShouldBeNil)
				So(rows[0].TeamName, ShouldEqual, "first-movers")
				So(rows[1].TeamName, ShouldEqual, "late-movers")
			})
		})
	})

	Convey("Given teams tied on score and last attempt", t, func() {
		at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

		src := &stubSource{global: []model.GlobalLeaderboardRow{
			{TeamName: "zebra", BestScore: ptrFloat(0.3), LastAttempt: ptrTime(at)},
			{TeamName: "alpha", BestScore: ptrFloat(0.3), LastAttempt: ptrTime(at)},
		}}
		svc := New(src)

		Convey("When the global leaderboard is computed", func() {
			rows, err := svc.Global(context.Background(), "MAP@10")

			Convey("Then team name breaks the tie", func() {
				So(err, ShouldBeNil)
				So(rows[0].TeamName, ShouldEqual, "alpha")
				So(rows[1].TeamName, ShouldEqual, "zebra")
			})
		})
	})

	Convey("Given a source that fails", t, func() {
		src := &stubSource{err: errors.New("disk on fire")}
		svc := New(src)

		Convey("When the global leaderboard is computed", func() {
			rows, err := svc.Global(context.Background(), "MAP@10")

			Convey("Then the error is propagated", func() {
				So(err, ShouldNotBeNil)
				So(rows, ShouldBeNil)
			})
		})
	})
}

func TestGlobalIdempotence(t *testing.T) {
	Convey("Given a fixed set of source rows", t, func() {
		at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		src := &stubSource{global: []model.GlobalLeaderboardRow{
			{TeamName: "b", BestScore: ptrFloat(0.2), LastAttempt: ptrTime(at)},
			{TeamName: "a", BestScore: ptrFloat(0.9), LastAttempt: ptrTime(at)},
			{TeamName: "c"},
		}}
		svc := New(src)

		Convey("When the leaderboard is computed twice", func() {
			first, err1 := svc.Global(context.Background(), "MAP@10")
			second, err2 := svc.Global(context.Background(), "MAP@10")

			Convey("Then both runs produce the same order", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(second, ShouldResemble, first)
			})
		})
	})
}

func TestByModelOrdering(t *testing.T) {
	Convey("Given successful (team, model) pairs in arbitrary order", t, func() {
		at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		src := &stubSource{byModel: []model.ModelLeaderboardRow{
			{TeamName: "beta", ModelName: "als", BestScore: 0.2, NAttempts: 1, LastAttempt: at},
			{TeamName: "alpha", ModelName: "pop", BestScore: 0.1, NAttempts: 2, LastAttempt: at},
			{TeamName: "alpha", ModelName: "bpr", BestScore: 0.4, NAttempts: 1, LastAttempt: at},
		}}
		svc := New(src)

		Convey("When the by-model leaderboard is computed", func() {
			rows, err := svc.ByModel(context.Background(), "MAP@10")

			Convey("Then rows are ordered by team then model name", func() {
				So(err, ShouldBeNil)
				So(rows[0].TeamName, ShouldEqual, "alpha")
				So(rows[0].ModelName, ShouldEqual, "bpr")
				So(rows[1].TeamName, ShouldEqual, "alpha")
				So(rows[1].ModelName, ShouldEqual, "pop")
				So(rows[2].TeamName, ShouldEqual, "beta")
			})
		})
	})
}
