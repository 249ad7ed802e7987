package gunner

import (
	"net/http"
	"time"

	"github.com/recsyscourse/requestor/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		if client != nil {
			s.client = client
		}
	}
}

// WithRecoSize sets the exact number of items a valid response must contain.
func WithRecoSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.recoSize = size
		}
	}
}

// WithBatchSize bounds how many users are polled within one sub-loop.
func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithMaxAttempts caps per-user retries before the run is aborted.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithMaxRespBytes sets the fatal response body size ceiling.
func WithMaxRespBytes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRespBytes = n
		}
	}
}

// WithTimeout bounds one whole polling run.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithURLTemplate sets the per-user request URL template.
func WithURLTemplate(tpl string) Option {
	return func(s *Service) {
		if tpl != "" {
			s.urlTemplate = tpl
		}
	}
}

// WithProgressPeriod sets the fraction of processed batches between
// progress notifications.
func WithProgressPeriod(period float64) Option {
	return func(s *Service) {
		if period > 0 && period <= 1 {
			s.progressPeriod = period
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}
