// Package leaderboard aggregates persisted trial and metric facts into
// ordered standings.
package leaderboard

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/recsyscourse/requestor/internal/domain/model"
	"github.com/recsyscourse/requestor/pkg/logger"
	"github.com/recsyscourse/requestor/pkg/metrics"
)

// Source supplies unordered aggregate rows from the storage collaborator.
type Source interface {
	GlobalLeaderboardRows(ctx context.Context, metricName string) ([]model.GlobalLeaderboardRow, error)
	ByModelLeaderboardRows(ctx context.Context, metricName string) ([]model.ModelLeaderboardRow, error)
}

// Publisher pushes a freshly computed global leaderboard to its public home.
type Publisher interface {
	PublishGlobal(ctx context.Context, rows []model.GlobalLeaderboardRow) error
}

// Service computes the ordered leaderboard views.
type Service struct {
	src Source
	log logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a leaderboard service over the given source.
func New(src Source, opts ...Option) *Service {
	s := &Service{src: src}

	for _, opt := range opts {
		opt(s)
	}

	if s.log == nil {
		s.log = logger.Get().Named("leaderboard")
	}

	return s
}

// Global returns one row per team (teams without successful trials
// included), ordered by best score descending with nulls last, then last
// attempt ascending with nulls last, then team name.
func (s *Service) Global(ctx context.Context, metricName string) ([]model.GlobalLeaderboardRow, error) {
	rows, err := s.src.GlobalLeaderboardRows(ctx, metricName)
	if err != nil {
		return nil, fmt.Errorf("load global leaderboard rows: %w", err)
	}

	slices.SortFunc(rows, compareGlobal)

	metrics.RecordLeaderboardRecompute()
	metrics.UpdateLeaderboardRows(len(rows))
	return rows, nil
}

// ByModel returns one row per (team, model) pair with at least one
// successful trial, ordered by team name then model name.
func (s *Service) ByModel(ctx context.Context, metricName string) ([]model.ModelLeaderboardRow, error) {
	rows, err := s.src.ByModelLeaderboardRows(ctx, metricName)
	if err != nil {
		return nil, fmt.Errorf("load by-model leaderboard rows: %w", err)
	}

	slices.SortFunc(rows, func(a, b model.ModelLeaderboardRow) int {
		if c := cmp.Compare(a.TeamName, b.TeamName); c != 0 {
			return c
		}
		return cmp.Compare(a.ModelName, b.ModelName)
	})

	return rows, nil
}

// compareGlobal implements the standings order. Output compatibility with
// downstream displays depends on this exact tie-break sequence.
func compareGlobal(a, b model.GlobalLeaderboardRow) int {
	switch {
	case a.BestScore != nil && b.BestScore != nil:
		if c := cmp.Compare(*b.BestScore, *a.BestScore); c != 0 {
			return c
		}
	case a.BestScore != nil:
		return -1
	case b.BestScore != nil:
		return 1
	}

	switch {
	case a.LastAttempt != nil && b.LastAttempt != nil:
		if c := a.LastAttempt.Compare(*b.LastAttempt); c != 0 {
			return c
		}
	case a.LastAttempt != nil:
		return -1
	case b.LastAttempt != nil:
		return 1
	}

	return cmp.Compare(a.TeamName, b.TeamName)
}
