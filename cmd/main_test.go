package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/recsyscourse/requestor/internal/adapters/http/api"
	app "github.com/recsyscourse/requestor/internal/app"
	"github.com/recsyscourse/requestor/internal/config"
	"github.com/recsyscourse/requestor/internal/gunner"
	"github.com/recsyscourse/requestor/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("REQUESTOR_ADDR", ":9090")
			_ = os.Setenv("REQUESTOR_BATCH_SIZE", "500")
			defer func() {
				_ = os.Unsetenv("REQUESTOR_ADDR")
				_ = os.Unsetenv("REQUESTOR_BATCH_SIZE")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.BatchSize, convey.ShouldEqual, 500)
			})
		})

		convey.Convey("When testing service creation", func() {
			convey.Convey("Then service should be creatable with default options", func() {
				svc := app.New()
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing HTTP server creation", func() {
			svc := app.New()
			convey.So(svc, convey.ShouldNotBeNil)

			convey.Convey("Then HTTP server should be creatable", func() {
				server := api.NewServer(svc, svc)
				convey.So(server, convey.ShouldNotBeNil)

				mux := http.NewServeMux()
				server.Register(context.Background(), mux)
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When testing system metrics updater", func() {
			convey.Convey("Then it should stop when the context is cancelled", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startSystemMetricsUpdater(ctx)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing system metrics update", func() {
			convey.Convey("Then it should update metrics without panicking", func() {
				convey.So(func() {
					updateSystemMetrics()
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing poller construction from config", func() {
			cfg := config.New()

			convey.Convey("Then the poller should accept the configured knobs", func() {
				poller := gunner.New(
					gunner.WithRecoSize(cfg.RecoSize),
					gunner.WithBatchSize(cfg.BatchSize),
					gunner.WithMaxAttempts(cfg.MaxAttempts),
					gunner.WithMaxRespBytes(cfg.MaxRespBytes),
					gunner.WithTimeout(cfg.PollTimeout),
					gunner.WithURLTemplate(cfg.RequestURLTemplate),
					gunner.WithProgressPeriod(cfg.ProgressPeriod),
				)
				convey.So(poller, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given main application error handling", t, func() {
		convey.Convey("When testing invalid configuration", func() {
			_ = os.Setenv("REQUESTOR_ADDR", "")
			defer func() { _ = os.Unsetenv("REQUESTOR_ADDR") }()

			convey.Convey("Then configuration loading should fail", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When starting a service without its dependencies", func() {
			svc := app.New()

			convey.Convey("Then Start should report the missing wiring", func() {
				err := svc.Start(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
