// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/recsyscourse/requestor/internal/adapters/repository"
	"github.com/recsyscourse/requestor/internal/domain/model"
	"github.com/recsyscourse/requestor/internal/trials"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RegisterTeam(ctx context.Context, info model.TeamInfo) (model.Team, error)
	UpdateTeam(ctx context.Context, teamID uuid.UUID, info model.TeamInfo) (model.Team, error)
	ListTeams(ctx context.Context) ([]model.Team, error)

	RegisterModel(ctx context.Context, info model.ModelInfo) (model.Model, error)
	ListModels(ctx context.Context, teamID uuid.UUID) ([]model.Model, error)

	// Evaluate admits a trial and runs the pipeline in the background.
	Evaluate(ctx context.Context, teamTitle, modelName string) (model.Trial, error)
	Trial(ctx context.Context, trialID uuid.UUID) (model.Trial, []model.Metric, error)
	TodayStats(ctx context.Context, teamTitle string) (model.TrialStats, error)

	GlobalLeaderboard(ctx context.Context) ([]model.GlobalLeaderboardRow, error)
	ByModelLeaderboard(ctx context.Context) ([]model.ModelLeaderboardRow, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	teamsHandler       *TeamsHandler
	modelsHandler      *ModelsHandler
	evaluationsHandler *EvaluationsHandler
	leaderboardHandler *LeaderboardHandler
	dashboardHandler   *dashboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		teamsHandler:       NewTeamsHandler(deps),
		modelsHandler:      NewModelsHandler(deps),
		evaluationsHandler: NewEvaluationsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps),
		dashboardHandler:   newDashboardHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/teams", MetricsMiddleware(s.teamsHandler.HandleTeams, "teams"))
	mux.HandleFunc("/teams/", MetricsMiddleware(s.teamsHandler.HandleTeamByID, "teams"))
	mux.HandleFunc("/models", MetricsMiddleware(s.modelsHandler.HandleModels, "models"))
	mux.HandleFunc("/evaluations", MetricsMiddleware(s.evaluationsHandler.HandlePostEvaluation, "evaluations"))
	mux.HandleFunc("/evaluations/", MetricsMiddleware(s.evaluationsHandler.HandleGetEvaluation, "evaluations"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetGlobal, "leaderboard"))
	mux.HandleFunc("/leaderboard/models", MetricsMiddleware(s.leaderboardHandler.HandleGetByModel, "leaderboard_models"))
}

// teamResponse mirrors the read shape of a registered team. The API key is
// deliberately never echoed back.
type teamResponse struct {
	TeamID     string    `json:"team_id"`
	Title      string    `json:"title"`
	APIBaseURL string    `json:"api_base_url"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toTeamResponse(t model.Team) teamResponse {
	return teamResponse{
		TeamID:     t.TeamID.String(),
		Title:      t.Title,
		APIBaseURL: t.APIBaseURL,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

type modelResponse struct {
	ModelID     string    `json:"model_id"`
	TeamID      string    `json:"team_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toModelResponse(m model.Model) modelResponse {
	return modelResponse{
		ModelID:     m.ModelID.String(),
		TeamID:      m.TeamID.String(),
		Name:        m.Name,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
}

type metricValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type trialResponse struct {
	TrialID    string        `json:"trial_id"`
	ModelID    string        `json:"model_id"`
	Status     string        `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Metrics    []metricValue `json:"metrics,omitempty"`
}

func toTrialResponse(t model.Trial, values []model.Metric) trialResponse {
	resp := trialResponse{
		TrialID:   t.TrialID.String(),
		ModelID:   t.ModelID.String(),
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
	}
	if t.FinishedAt != nil {
		resp.FinishedAt = t.FinishedAt
	}
	for _, v := range values {
		resp.Metrics = append(resp.Metrics, metricValue{Name: v.Name, Value: v.Value})
	}
	return resp
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates storage and admission errors into HTTP
// status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrTeamNotFound),
		errors.Is(err, repository.ErrModelNotFound),
		errors.Is(err, repository.ErrTrialNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrTeamAlreadyExists),
		errors.Is(err, repository.ErrModelAlreadyExists):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, trials.ErrAdmissionDenied):
		writeError(w, http.StatusTooManyRequests, "quota_exceeded", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
