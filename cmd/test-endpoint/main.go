// Command test-endpoint runs a mock team recommender endpoint. Point a
// registered team's api_base_url at it to exercise the evaluation pipeline
// without a real model behind it.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/recsyscourse/requestor/internal/testendpoint"
	"github.com/recsyscourse/requestor/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	var (
		addr        = flag.String("addr", ":8090", "Listen address")
		recoSize    = flag.Int("reco-size", 10, "Number of items returned per user")
		numItems    = flag.Int64("items", 1000, "Size of the item id space")
		latency     = flag.Duration("latency", 0, "Artificial delay before each response")
		failureRate = flag.Float64("failure-rate", 0, "Fraction of requests answered with 503")
		apiKey      = flag.String("api-key", "", "Require this bearer token on every request")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get().Named("test-endpoint")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	endpoint := testendpoint.New(
		testendpoint.WithRecoSize(*recoSize),
		testendpoint.WithNumItems(*numItems),
		testendpoint.WithLatency(*latency),
		testendpoint.WithFailureRate(*failureRate),
		testendpoint.WithAPIKey(*apiKey),
		testendpoint.WithLogger(log),
	)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           endpoint.Handler(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting mock endpoint",
			logger.String("addr", *addr),
			logger.Int("reco_size", *recoSize),
			logger.Float64("failure_rate", *failureRate))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "mock endpoint stopped")
}
