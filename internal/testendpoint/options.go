package testendpoint

import (
	"time"

	"github.com/recsyscourse/requestor/pkg/logger"
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithRecoSize sets the number of items returned per user.
func WithRecoSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.recoSize = n
		}
	}
}

// WithNumItems sets the size of the item id space.
func WithNumItems(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.numItems = n
		}
	}
}

// WithLatency adds an artificial delay before each response.
func WithLatency(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.latency = d
		}
	}
}

// WithFailureRate makes the given fraction of requests return 503.
func WithFailureRate(rate float64) Option {
	return func(s *Server) {
		if rate >= 0 && rate <= 1 {
			s.failureRate = rate
		}
	}
}

// WithAPIKey requires a bearer token on every request.
func WithAPIKey(key string) Option {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithLogger sets a custom logger for the server.
func WithLogger(log logger.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}
