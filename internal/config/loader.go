package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if REQUESTOR_CONFIG is set
//  3. env (prefix REQUESTOR_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("REQUESTOR_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: REQUESTOR_ADDR, REQUESTOR_BATCH_SIZE, ...
	// Keys map like REQUESTOR_BATCH_SIZE -> batch_size (flat keys, so
	// underscores are preserved to match koanf tags on the struct).
	envProvider := env.Provider("REQUESTOR_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "requestor_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.RecoSize <= 0:
		return fmt.Errorf("%w: reco_size must be positive", ErrInvalidConfig)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch_size must be positive", ErrInvalidConfig)
	case c.MaxAttempts <= 0:
		return fmt.Errorf("%w: max_attempts must be positive", ErrInvalidConfig)
	case c.MaxRespBytes <= 0:
		return fmt.Errorf("%w: max_resp_bytes must be positive", ErrInvalidConfig)
	case c.PollTimeout <= 0:
		return fmt.Errorf("%w: poll_timeout must be positive", ErrInvalidConfig)
	case c.ProgressPeriod <= 0 || c.ProgressPeriod > 1:
		return fmt.Errorf("%w: progress_period must be in (0, 1]", ErrInvalidConfig)
	case len(c.Metrics) == 0:
		return fmt.Errorf("%w: metrics must not be empty", ErrInvalidConfig)
	case c.MainMetric == "":
		return fmt.Errorf("%w: main_metric must not be empty", ErrInvalidConfig)
	}

	for _, m := range c.Metrics {
		if m == c.MainMetric {
			return nil
		}
	}
	return fmt.Errorf("%w: main_metric %q not present in metrics", ErrInvalidConfig, c.MainMetric)
}
