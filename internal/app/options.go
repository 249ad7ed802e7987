package service

import (
	"time"

	"github.com/recsyscourse/requestor/internal/adapters/repository"
	"github.com/recsyscourse/requestor/internal/assessor"
	"github.com/recsyscourse/requestor/internal/gunner"
	"github.com/recsyscourse/requestor/internal/leaderboard"
	"github.com/recsyscourse/requestor/internal/trials"
	"github.com/recsyscourse/requestor/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence layer.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithPoller sets the recommendation poller.
func WithPoller(p *gunner.Service) Option {
	return func(s *Service) {
		s.poller = p
	}
}

// WithAssessor sets the metric assessor.
func WithAssessor(a *assessor.Service) Option {
	return func(s *Service) {
		s.assessor = a
	}
}

// WithLeaderboard sets the leaderboard aggregator.
func WithLeaderboard(b *leaderboard.Service) Option {
	return func(s *Service) {
		s.board = b
	}
}

// WithPublisher sets the leaderboard publisher hook.
func WithPublisher(p leaderboard.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithNotifier sets the progress notifier passed to the poller.
func WithNotifier(n gunner.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithUsers sets the test user population to poll for.
func WithUsers(users []int64) Option {
	return func(s *Service) {
		s.users = users
	}
}

// WithMainMetric sets the metric the leaderboard ranks by.
func WithMainMetric(name string) Option {
	return func(s *Service) {
		s.mainMetric = name
	}
}

// WithLimits sets the daily trial admission limits.
func WithLimits(limits trials.Limits) Option {
	return func(s *Service) {
		s.limits = limits
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}
