// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/recsyscourse/requestor/internal/domain/model"
)

// BoardDependencies defines the interface for leaderboard operations.
type BoardDependencies interface {
	GlobalLeaderboard(ctx context.Context) ([]model.GlobalLeaderboardRow, error)
	ByModelLeaderboard(ctx context.Context) ([]model.ModelLeaderboardRow, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps BoardDependencies
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps BoardDependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

type globalRowResponse struct {
	Place       int        `json:"place"`
	TeamName    string     `json:"team_name"`
	BestScore   *float64   `json:"best_score"`
	NAttempts   int        `json:"n_attempts"`
	LastAttempt *time.Time `json:"last_attempt"`
}

type modelRowResponse struct {
	TeamName    string    `json:"team_name"`
	ModelName   string    `json:"model_name"`
	BestScore   float64   `json:"best_score"`
	NAttempts   int       `json:"n_attempts"`
	LastAttempt time.Time `json:"last_attempt"`
}

// HandleGetGlobal handles GET /leaderboard requests.
func (h *LeaderboardHandler) HandleGetGlobal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	rows, err := h.deps.GlobalLeaderboard(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	resp := make([]globalRowResponse, 0, len(rows))
	for i, row := range rows {
		resp = append(resp, globalRowResponse{
			Place:       i + 1,
			TeamName:    row.TeamName,
			BestScore:   row.BestScore,
			NAttempts:   row.NAttempts,
			LastAttempt: row.LastAttempt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGetByModel handles GET /leaderboard/models requests.
func (h *LeaderboardHandler) HandleGetByModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	rows, err := h.deps.ByModelLeaderboard(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	resp := make([]modelRowResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, modelRowResponse{
			TeamName:    row.TeamName,
			ModelName:   row.ModelName,
			BestScore:   row.BestScore,
			NAttempts:   row.NAttempts,
			LastAttempt: row.LastAttempt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
