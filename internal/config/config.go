// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load(ctx) layers defaults, an optional YAML file, and env vars.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the sqlite database location.
	DBPath string `koanf:"db_path"`

	// InteractionsPath points at the reference interactions CSV.
	InteractionsPath string `koanf:"interactions_path"`

	// RecoSize is the exact number of items a valid response must contain.
	RecoSize int `koanf:"reco_size"`

	// BatchSize bounds how many users are polled within one sub-loop.
	BatchSize int `koanf:"batch_size"`

	// MaxAttempts caps per-user retries before the run is aborted.
	MaxAttempts int `koanf:"max_attempts"`

	// MaxRespBytes is the response body size ceiling; exceeding it is fatal.
	MaxRespBytes int `koanf:"max_resp_bytes"`

	// PollTimeout bounds one whole polling run.
	PollTimeout time.Duration `koanf:"poll_timeout"`

	// RequestURLTemplate builds per-user request URLs. Placeholders:
	// {api_base_url}, {model_name}, {user_id}.
	RequestURLTemplate string `koanf:"request_url_template"`

	// ProgressPeriod is the fraction of processed batches between
	// best-effort progress notifications, in (0, 1].
	ProgressPeriod float64 `koanf:"progress_period"`

	// Metrics lists the quality metrics to compute, in display order.
	Metrics []string `koanf:"metrics"`

	// MainMetric names the metric used for leaderboards and progress replies.
	MainMetric string `koanf:"main_metric"`

	// Daily admission limits per team.
	MaxSuccessPerDay int `koanf:"max_success_per_day"`
	MaxWaiting       int `koanf:"max_waiting"`
	MaxFailedPerDay  int `koanf:"max_failed_per_day"`
}

// Defaults mirroring the course setup.
const (
	defaultRecoSize     = 10
	defaultBatchSize    = 1000
	defaultMaxAttempts  = 3
	defaultMaxRespBytes = 10_000
	defaultPollTimeout  = 10 * time.Minute
	defaultProgress     = 0.25

	defaultMaxSuccessPerDay = 5
	defaultMaxWaiting       = 1
	defaultMaxFailedPerDay  = 20
)

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":8080",
		DBPath:             "requestor.db",
		InteractionsPath:   "interactions.csv",
		RecoSize:           defaultRecoSize,
		BatchSize:          defaultBatchSize,
		MaxAttempts:        defaultMaxAttempts,
		MaxRespBytes:       defaultMaxRespBytes,
		PollTimeout:        defaultPollTimeout,
		RequestURLTemplate: "{api_base_url}/{model_name}/{user_id}",
		ProgressPeriod:     defaultProgress,
		Metrics:            []string{"Precision@10", "Recall@10", "MAP@10"},
		MainMetric:         "MAP@10",
		MaxSuccessPerDay:   defaultMaxSuccessPerDay,
		MaxWaiting:         defaultMaxWaiting,
		MaxFailedPerDay:    defaultMaxFailedPerDay,
	}
}
