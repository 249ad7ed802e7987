// Package metrics provides Prometheus metrics for the requestor evaluation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager holds all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Trial pipeline metrics
	trialsStarted   prometheus.Counter
	trialsFinished  *prometheus.CounterVec
	trialsRejected  prometheus.Counter
	trialDuration   prometheus.Histogram
	metricsRecorded prometheus.Counter

	// Poller metrics
	pollRequests    prometheus.Counter
	pollRetries     prometheus.Counter
	pollRoundsTotal prometheus.Counter
	pollRoundLag    prometheus.Histogram
	pollFailures    *prometheus.CounterVec

	// Leaderboard metrics
	leaderboardRecomputes prometheus.Counter
	leaderboardRows       prometheus.Gauge

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid the default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "requestor",
		subsystem:        "evaluation",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.trialsStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "trials_started_total",
		Help:      "Total number of trials admitted and started",
	})

	m.trialsFinished = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "trials_finished_total",
		Help:      "Total number of finished trials by terminal status",
	}, []string{"status"})

	m.trialsRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "trials_rejected_total",
		Help:      "Total number of trials rejected by admission control",
	})

	m.trialDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "trial_duration_seconds",
		Help:      "Wall-clock duration of a full evaluation run",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	})

	m.metricsRecorded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "metrics_recorded_total",
		Help:      "Total number of quality metric values persisted",
	})

	m.pollRequests = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "poll_requests_total",
		Help:      "Total number of per-user recommendation requests issued",
	})

	m.pollRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "poll_retries_total",
		Help:      "Total number of per-user retries after non-200 responses",
	})

	m.pollRoundsTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "poll_rounds_total",
		Help:      "Total number of fan-out rounds executed",
	})

	m.pollRoundLag = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "poll_round_duration_milliseconds",
		Help:      "Duration of one fan-out/fan-in polling round in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.pollFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "poll_failures_total",
		Help:      "Total number of fatal polling failures by kind",
	}, []string{"kind"})

	m.leaderboardRecomputes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_recomputes_total",
		Help:      "Total number of leaderboard recomputations",
	})

	m.leaderboardRows = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_rows",
		Help:      "Number of rows in the last computed global leaderboard",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "memory_usage_bytes",
		Help:      "Current allocated heap memory in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "goroutines",
		Help:      "Current number of goroutines",
	})
}

// RecordTrialStarted increments the started trials counter.
func RecordTrialStarted() {
	globalManager.trialsStarted.Inc()
}

// RecordTrialFinished increments the finished trials counter for a terminal status.
func RecordTrialFinished(status string) {
	globalManager.trialsFinished.WithLabelValues(status).Inc()
}

// RecordTrialRejected increments the admission rejections counter.
func RecordTrialRejected() {
	globalManager.trialsRejected.Inc()
}

// RecordTrialDuration records the wall-clock duration of an evaluation run.
func RecordTrialDuration(seconds float64) {
	globalManager.trialDuration.Observe(seconds)
}

// RecordMetricsRecorded adds to the persisted metric values counter.
func RecordMetricsRecorded(n int) {
	globalManager.metricsRecorded.Add(float64(n))
}

// RecordPollRequest increments the issued requests counter.
func RecordPollRequest() {
	globalManager.pollRequests.Inc()
}

// RecordPollRetry increments the per-user retries counter.
func RecordPollRetry() {
	globalManager.pollRetries.Inc()
}

// RecordPollRound records one completed fan-out round and its duration.
func RecordPollRound(durationMs float64) {
	globalManager.pollRoundsTotal.Inc()
	globalManager.pollRoundLag.Observe(durationMs)
}

// RecordPollFailure increments the fatal polling failures counter for a kind.
func RecordPollFailure(kind string) {
	globalManager.pollFailures.WithLabelValues(kind).Inc()
}

// RecordLeaderboardRecompute increments the leaderboard recompute counter.
func RecordLeaderboardRecompute() {
	globalManager.leaderboardRecomputes.Inc()
}

// UpdateLeaderboardRows sets the row count of the last computed global leaderboard.
func UpdateLeaderboardRows(n int) {
	globalManager.leaderboardRows.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// UpdateSystemMemoryUsage sets the current allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the current goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
