package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/recsyscourse/requestor/internal/adapters/http/api"
	"github.com/recsyscourse/requestor/internal/adapters/repository"
	app "github.com/recsyscourse/requestor/internal/app"
	"github.com/recsyscourse/requestor/internal/assessor"
	"github.com/recsyscourse/requestor/internal/config"
	"github.com/recsyscourse/requestor/internal/gunner"
	"github.com/recsyscourse/requestor/internal/leaderboard"
	"github.com/recsyscourse/requestor/internal/trials"
	"github.com/recsyscourse/requestor/pkg/logger"
	"github.com/recsyscourse/requestor/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 30 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics.
	// We collect our own custom system metrics instead.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env).
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input).
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	interactions, err := assessor.LoadInteractions(cfg.InteractionsPath)
	if err != nil {
		log.Error(ctx, "failed to load interactions", logger.String("path", cfg.InteractionsPath), logger.Error(err))
		return
	}
	log.Info(ctx, "interactions loaded",
		logger.String("path", cfg.InteractionsPath),
		logger.Int("users", len(interactions.Users())))

	metricSet, err := assessor.BuildMetricSet(cfg.Metrics)
	if err != nil {
		log.Error(ctx, "failed to build metric set", logger.Error(err))
		return
	}

	store, err := repository.NewSQLiteStore(cfg.DBPath, repository.WithLogger(log.Named("repository")))
	if err != nil {
		log.Error(ctx, "failed to open database", logger.String("db_path", cfg.DBPath), logger.Error(err))
		return
	}

	poller := gunner.New(
		gunner.WithRecoSize(cfg.RecoSize),
		gunner.WithBatchSize(cfg.BatchSize),
		gunner.WithMaxAttempts(cfg.MaxAttempts),
		gunner.WithMaxRespBytes(cfg.MaxRespBytes),
		gunner.WithTimeout(cfg.PollTimeout),
		gunner.WithURLTemplate(cfg.RequestURLTemplate),
		gunner.WithProgressPeriod(cfg.ProgressPeriod),
		gunner.WithLogger(log.Named("gunner")),
	)

	board := leaderboard.New(store, leaderboard.WithLogger(log.Named("leaderboard")))

	// Create and start the service with configuration options.
	svc := app.New(
		app.WithLogger(log),
		app.WithStore(store),
		app.WithPoller(poller),
		app.WithAssessor(assessor.New(interactions, metricSet, assessor.WithLogger(log.Named("assessor")))),
		app.WithLeaderboard(board),
		app.WithPublisher(leaderboard.NewLogPublisher(log.Named("leaderboard"))),
		app.WithUsers(interactions.Users()),
		app.WithMainMetric(cfg.MainMetric),
		app.WithLimits(trials.Limits{
			MaxSuccessPerDay: cfg.MaxSuccessPerDay,
			MaxWaiting:       cfg.MaxWaiting,
			MaxFailedPerDay:  cfg.MaxFailedPerDay,
		}),
	)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	// Start system metrics updater.
	go startSystemMetricsUpdater(ctx)

	// HTTP mux and routes.
	mux := http.NewServeMux()

	// Register business API routes with the service dependency.
	apiServer := api.NewServer(svc, svc)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates memory and goroutine gauges.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
