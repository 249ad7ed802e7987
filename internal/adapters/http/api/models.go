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

// ModelDependencies defines the interface for model registration operations.
type ModelDependencies interface {
	RegisterModel(ctx context.Context, info model.ModelInfo) (model.Model, error)
	ListModels(ctx context.Context, teamID uuid.UUID) ([]model.Model, error)
}

// ModelsHandler handles model registration requests.
type ModelsHandler struct {
	deps ModelDependencies
}

// NewModelsHandler creates a new models handler.
func NewModelsHandler(deps ModelDependencies) *ModelsHandler {
	return &ModelsHandler{deps: deps}
}

// modelRequest mirrors the write shape for model registration.
type modelRequest struct {
	TeamID      string `json:"team_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (m modelRequest) validate() error {
	switch {
	case strings.TrimSpace(m.TeamID) == "":
		return errors.New("missing team_id")
	case strings.TrimSpace(m.Name) == "":
		return errors.New("missing name")
	}
	return nil
}

// HandleModels handles POST /models and GET /models?team_id=... requests.
func (h *ModelsHandler) HandleModels(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleRegister(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *ModelsHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req modelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	teamID, err := uuid.Parse(req.TeamID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("invalid team_id"))
		return
	}

	m, err := h.deps.RegisterModel(r.Context(), model.ModelInfo{
		TeamID:      teamID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toModelResponse(m))
}

func (h *ModelsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	teamID, err := uuid.Parse(r.URL.Query().Get("team_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("invalid team_id"))
		return
	}

	models, err := h.deps.ListModels(r.Context(), teamID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := make([]modelResponse, 0, len(models))
	for _, m := range models {
		resp = append(resp, toModelResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}
