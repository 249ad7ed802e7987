// Package repository defines the persistence interface for teams, models,
// trials and metrics, plus the leaderboard aggregate queries.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/recsyscourse/requestor/internal/domain/model"
)

// Store provides read/write access to the evaluation state.
type Store interface {
	// AddTeam registers a new team. Returns ErrTeamAlreadyExists when the
	// title or API base URL is taken.
	AddTeam(ctx context.Context, info model.TeamInfo) (model.Team, error)
	// UpdateTeam replaces the mutable attributes of an existing team.
	UpdateTeam(ctx context.Context, teamID uuid.UUID, info model.TeamInfo) (model.Team, error)
	// TeamByID returns ErrTeamNotFound for unknown ids.
	TeamByID(ctx context.Context, teamID uuid.UUID) (model.Team, error)
	// TeamByTitle returns ErrTeamNotFound for unknown titles.
	TeamByTitle(ctx context.Context, title string) (model.Team, error)
	ListTeams(ctx context.Context) ([]model.Team, error)

	// AddModel registers a model under its team. The (team, name) pair is
	// unique; violations return ErrModelAlreadyExists.
	AddModel(ctx context.Context, info model.ModelInfo) (model.Model, error)
	ModelByID(ctx context.Context, modelID uuid.UUID) (model.Model, error)
	// ModelByName resolves a model by its team and display name.
	ModelByName(ctx context.Context, teamID uuid.UUID, name string) (model.Model, error)
	ListModels(ctx context.Context, teamID uuid.UUID) ([]model.Model, error)

	// CreateTrial records a new trial in a non-terminal status.
	CreateTrial(ctx context.Context, modelID uuid.UUID, status model.TrialStatus) (model.Trial, error)
	// StartTrial moves a waiting trial to started.
	StartTrial(ctx context.Context, trialID uuid.UUID) error
	// FinalizeTrial moves a trial into a terminal status and stamps its
	// finish time. Finalizing an already-terminal trial is rejected.
	FinalizeTrial(ctx context.Context, trialID uuid.UUID, status model.TrialStatus) error
	TrialByID(ctx context.Context, trialID uuid.UUID) (model.Trial, error)
	// TrialStatsForDay counts the team's trials per status within the
	// calendar day containing the given moment.
	TrialStatsForDay(ctx context.Context, teamID uuid.UUID, day time.Time) (model.TrialStats, error)

	// AddMetrics persists all metric values for a trial atomically.
	// A repeated (trial, name) pair returns ErrMetricAlreadyExists.
	AddMetrics(ctx context.Context, trialID uuid.UUID, values []model.Metric) error
	TrialMetrics(ctx context.Context, trialID uuid.UUID) ([]model.Metric, error)

	// GlobalLeaderboardRows returns one unordered row per registered team.
	GlobalLeaderboardRows(ctx context.Context, metricName string) ([]model.GlobalLeaderboardRow, error)
	// ByModelLeaderboardRows returns unordered rows for (team, model)
	// pairs with at least one successful trial.
	ByModelLeaderboardRows(ctx context.Context, metricName string) ([]model.ModelLeaderboardRow, error)

	Close() error
}
