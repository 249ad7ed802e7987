// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recsyscourse/requestor/internal/adapters/repository"
	"github.com/recsyscourse/requestor/internal/assessor"
	"github.com/recsyscourse/requestor/internal/domain/model"
	"github.com/recsyscourse/requestor/internal/gunner"
	"github.com/recsyscourse/requestor/internal/leaderboard"
	"github.com/recsyscourse/requestor/internal/trials"
	"github.com/recsyscourse/requestor/pkg/logger"
	"github.com/recsyscourse/requestor/pkg/metrics"
)

// Service implements the API dependencies for the evaluation system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	poller    *gunner.Service
	assessor  *assessor.Service
	board     *leaderboard.Service
	publisher leaderboard.Publisher
	notifier  gunner.Notifier

	// Configuration
	users      []int64
	mainMetric string
	limits     trials.Limits
	now        func() time.Time

	// State
	started bool
	runs    sync.WaitGroup

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		limits: trials.DefaultLimits(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start verifies the wiring and marks the service as running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("app")
	}

	switch {
	case s.store == nil:
		return fmt.Errorf("start service: %w", ErrNotConfigured)
	case s.poller == nil:
		return fmt.Errorf("start service: poller: %w", ErrNotConfigured)
	case s.assessor == nil:
		return fmt.Errorf("start service: assessor: %w", ErrNotConfigured)
	case s.board == nil:
		return fmt.Errorf("start service: leaderboard: %w", ErrNotConfigured)
	case len(s.users) == 0:
		return fmt.Errorf("start service: empty test population: %w", ErrNotConfigured)
	case s.mainMetric == "":
		return fmt.Errorf("start service: main metric: %w", ErrNotConfigured)
	}

	if s.notifier == nil {
		s.notifier = &logNotifier{log: s.logger}
	}

	s.started = true
	s.logger.Info(ctx, "evaluation service started",
		logger.Int("test_users", len(s.users)),
		logger.String("main_metric", s.mainMetric),
	)

	return nil
}

// Stop waits for in-flight evaluations and shuts the service down.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.logger.Info(context.Background(), "stopping evaluation service...")
	s.runs.Wait()

	if err := s.store.Close(); err != nil {
		s.logger.Warn(context.Background(), "closing store failed", logger.Error(err))
	}

	s.logger.Info(context.Background(), "evaluation service stopped")
}

// RegisterTeam registers a new team.
func (s *Service) RegisterTeam(ctx context.Context, info model.TeamInfo) (model.Team, error) {
	return s.store.AddTeam(ctx, info)
}

// UpdateTeam replaces the mutable attributes of a team.
func (s *Service) UpdateTeam(ctx context.Context, teamID uuid.UUID, info model.TeamInfo) (model.Team, error) {
	return s.store.UpdateTeam(ctx, teamID, info)
}

// ListTeams returns all registered teams.
func (s *Service) ListTeams(ctx context.Context) ([]model.Team, error) {
	return s.store.ListTeams(ctx)
}

// RegisterModel registers a recommendation model for a team.
func (s *Service) RegisterModel(ctx context.Context, info model.ModelInfo) (model.Model, error) {
	return s.store.AddModel(ctx, info)
}

// ListModels returns the team's registered models.
func (s *Service) ListModels(ctx context.Context, teamID uuid.UUID) ([]model.Model, error) {
	return s.store.ListModels(ctx, teamID)
}

// Evaluate admits a new trial for the named team model and launches the
// evaluation pipeline in the background. The returned trial is in the
// waiting status; its outcome is observable through Trial.
func (s *Service) Evaluate(ctx context.Context, teamTitle, modelName string) (model.Trial, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return model.Trial{}, fmt.Errorf("evaluate: %w", ErrNotStarted)
	}

	team, err := s.store.TeamByTitle(ctx, teamTitle)
	if err != nil {
		return model.Trial{}, err
	}

	m, err := s.store.ModelByName(ctx, team.TeamID, modelName)
	if err != nil {
		return model.Trial{}, err
	}

	stats, err := s.store.TrialStatsForDay(ctx, team.TeamID, s.now())
	if err != nil {
		return model.Trial{}, fmt.Errorf("trial stats: %w", err)
	}
	if err := trials.CheckAdmission(stats, s.limits); err != nil {
		metrics.RecordTrialRejected()
		return model.Trial{}, err
	}

	trial, err := s.store.CreateTrial(ctx, m.ModelID, model.TrialStatusWaiting)
	if err != nil {
		return model.Trial{}, err
	}

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		// Detached from the request context: the evaluation outlives the
		// HTTP call that admitted it.
		s.runTrial(context.WithoutCancel(ctx), team, m, trial)
	}()

	return trial, nil
}

// runTrial drives one admitted trial through polling, assessment and
// finalization. Any pipeline failure finalizes the trial as failed.
func (s *Service) runTrial(ctx context.Context, team model.Team, m model.Model, trial model.Trial) {
	startedAt := s.now()

	if err := s.store.StartTrial(ctx, trial.TrialID); err != nil {
		s.logger.Error(ctx, "starting trial failed",
			logger.String("trial_id", trial.TrialID.String()), logger.Error(err))
		return
	}
	metrics.RecordTrialStarted()

	s.logger.Info(ctx, "trial started",
		logger.String("trial_id", trial.TrialID.String()),
		logger.String("team", team.Title),
		logger.String("model", m.Name),
	)

	values, err := s.assess(ctx, team, m)
	if err != nil {
		s.logger.Warn(ctx, "trial failed",
			logger.String("trial_id", trial.TrialID.String()), logger.Error(err))
		s.finalize(ctx, trial.TrialID, model.TrialStatusFailed, startedAt)
		return
	}

	if err := s.store.AddMetrics(ctx, trial.TrialID, values); err != nil {
		s.logger.Error(ctx, "recording metrics failed",
			logger.String("trial_id", trial.TrialID.String()), logger.Error(err))
		s.finalize(ctx, trial.TrialID, model.TrialStatusFailed, startedAt)
		return
	}
	metrics.RecordMetricsRecorded(len(values))

	s.finalize(ctx, trial.TrialID, model.TrialStatusSuccess, startedAt)
	s.notifyResult(ctx, values)
	s.publish(ctx)
}

// notifyResult reports the main metric outcome through the notifier.
// Delivery is best effort and never fails the trial.
func (s *Service) notifyResult(ctx context.Context, values []model.Metric) {
	for _, v := range values {
		if v.Name != s.mainMetric {
			continue
		}
		text := fmt.Sprintf("Result %s = %.4f", v.Name, v.Value)
		if err := s.notifier.Notify(ctx, text); err != nil {
			s.logger.Warn(ctx, "result notification failed", logger.Error(err))
		}
		return
	}
}

// assess polls the team endpoint and scores the collected recommendations.
func (s *Service) assess(ctx context.Context, team model.Team, m model.Model) ([]model.Metric, error) {
	responses, err := s.poller.GetRecos(ctx, team.APIBaseURL, m.Name, s.users, team.APIKey, s.notifier)
	if err != nil {
		return nil, fmt.Errorf("poll recommendations: %w", err)
	}

	rows := assessor.PrepareRecos(responses)
	values, err := s.assessor.EstimateRecos(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("estimate recommendations: %w", err)
	}
	return values, nil
}

func (s *Service) finalize(ctx context.Context, trialID uuid.UUID, status model.TrialStatus, startedAt time.Time) {
	if err := s.store.FinalizeTrial(ctx, trialID, status); err != nil {
		s.logger.Error(ctx, "finalizing trial failed",
			logger.String("trial_id", trialID.String()), logger.Error(err))
		return
	}
	metrics.RecordTrialFinished(string(status))
	metrics.RecordTrialDuration(s.now().Sub(startedAt).Seconds())
}

// publish recomputes the global standings and hands them to the publisher.
func (s *Service) publish(ctx context.Context) {
	rows, err := s.board.Global(ctx, s.mainMetric)
	if err != nil {
		s.logger.Error(ctx, "leaderboard recompute failed", logger.Error(err))
		return
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishGlobal(ctx, rows); err != nil {
		s.logger.Warn(ctx, "leaderboard publish failed", logger.Error(err))
	}
}

// Trial returns the trial together with its recorded metric values.
func (s *Service) Trial(ctx context.Context, trialID uuid.UUID) (model.Trial, []model.Metric, error) {
	trial, err := s.store.TrialByID(ctx, trialID)
	if err != nil {
		return model.Trial{}, nil, err
	}

	values, err := s.store.TrialMetrics(ctx, trialID)
	if err != nil {
		return model.Trial{}, nil, err
	}
	return trial, values, nil
}

// TodayStats returns the team's per-status trial counts for today.
func (s *Service) TodayStats(ctx context.Context, teamTitle string) (model.TrialStats, error) {
	team, err := s.store.TeamByTitle(ctx, teamTitle)
	if err != nil {
		return nil, err
	}
	return s.store.TrialStatsForDay(ctx, team.TeamID, s.now())
}

// GlobalLeaderboard returns the ordered global standings for the main metric.
func (s *Service) GlobalLeaderboard(ctx context.Context) ([]model.GlobalLeaderboardRow, error) {
	return s.board.Global(ctx, s.mainMetric)
}

// ByModelLeaderboard returns the ordered per-model standings for the main metric.
func (s *Service) ByModelLeaderboard(ctx context.Context) ([]model.ModelLeaderboardRow, error) {
	return s.board.ByModel(ctx, s.mainMetric)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"started":     s.started,
		"test_users":  len(s.users),
		"main_metric": s.mainMetric,
		"limits": map[string]int{
			"max_success_per_day": s.limits.MaxSuccessPerDay,
			"max_waiting":         s.limits.MaxWaiting,
			"max_failed_per_day":  s.limits.MaxFailedPerDay,
		},
	}
}

// logNotifier reports polling progress to the service log.
type logNotifier struct {
	log logger.Logger
}

func (n *logNotifier) Notify(ctx context.Context, text string) error {
	n.log.Info(ctx, "polling progress", logger.String("message", text))
	return nil
}
