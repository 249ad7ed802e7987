// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/recsyscourse/requestor/internal/domain/model"
)

// EvaluationDependencies defines the interface for trial operations.
type EvaluationDependencies interface {
	Evaluate(ctx context.Context, teamTitle, modelName string) (model.Trial, error)
	Trial(ctx context.Context, trialID uuid.UUID) (model.Trial, []model.Metric, error)
	TodayStats(ctx context.Context, teamTitle string) (model.TrialStats, error)
}

// EvaluationsHandler handles trial admission and status requests.
type EvaluationsHandler struct {
	deps EvaluationDependencies
}

// NewEvaluationsHandler creates a new evaluations handler.
func NewEvaluationsHandler(deps EvaluationDependencies) *EvaluationsHandler {
	return &EvaluationsHandler{deps: deps}
}

// evaluationRequest mirrors the write shape for POST /evaluations.
type evaluationRequest struct {
	Team  string `json:"team"`
	Model string `json:"model"`
}

func (e evaluationRequest) validate() error {
	switch {
	case strings.TrimSpace(e.Team) == "":
		return errors.New("missing team")
	case strings.TrimSpace(e.Model) == "":
		return errors.New("missing model")
	}
	return nil
}

// HandlePostEvaluation handles POST /evaluations requests. The trial is
// admitted synchronously and evaluated in the background; the response
// carries the waiting trial for later polling.
func (h *EvaluationsHandler) HandlePostEvaluation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req evaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	trial, err := h.deps.Evaluate(r.Context(), req.Team, req.Model)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toTrialResponse(trial, nil))
}

// HandleGetEvaluation handles GET /evaluations/{trial_id} requests.
func (h *EvaluationsHandler) HandleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	// Extract path parameter after /evaluations/
	path := strings.TrimPrefix(r.URL.Path, "/evaluations/")
	trialID, err := uuid.Parse(path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("invalid trial id"))
		return
	}

	trial, values, err := h.deps.Trial(r.Context(), trialID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTrialResponse(trial, values))
}
