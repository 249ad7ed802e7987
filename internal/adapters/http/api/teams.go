// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/recsyscourse/requestor/internal/domain/model"
)

// TeamDependencies defines the interface for team registration operations.
type TeamDependencies interface {
	RegisterTeam(ctx context.Context, info model.TeamInfo) (model.Team, error)
	UpdateTeam(ctx context.Context, teamID uuid.UUID, info model.TeamInfo) (model.Team, error)
	ListTeams(ctx context.Context) ([]model.Team, error)
}

// TeamsHandler handles team registration requests.
type TeamsHandler struct {
	deps TeamDependencies
}

// NewTeamsHandler creates a new teams handler.
func NewTeamsHandler(deps TeamDependencies) *TeamsHandler {
	return &TeamsHandler{deps: deps}
}

// teamRequest mirrors the write shape for team registration.
type teamRequest struct {
	Title      string `json:"title"`
	APIBaseURL string `json:"api_base_url"`
	APIKey     string `json:"api_key"`
}

func (t teamRequest) validate() error {
	switch {
	case strings.TrimSpace(t.Title) == "":
		return errors.New("missing title")
	case strings.TrimSpace(t.APIBaseURL) == "":
		return errors.New("missing api_base_url")
	}
	u, err := url.Parse(t.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("api_base_url must be an absolute URL")
	}
	return nil
}

// HandleTeams handles POST /teams and GET /teams requests.
func (h *TeamsHandler) HandleTeams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleRegister(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *TeamsHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req teamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	team, err := h.deps.RegisterTeam(r.Context(), model.TeamInfo{
		Title:      req.Title,
		APIBaseURL: req.APIBaseURL,
		APIKey:     req.APIKey,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTeamResponse(team))
}

func (h *TeamsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	teams, err := h.deps.ListTeams(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := make([]teamResponse, 0, len(teams))
	for _, t := range teams {
		resp = append(resp, toTeamResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleTeamByID handles PUT /teams/{team_id} requests.
func (h *TeamsHandler) HandleTeamByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.NotFound(w, r)
		return
	}

	// Extract path parameter after /teams/
	path := strings.TrimPrefix(r.URL.Path, "/teams/")
	teamID, err := uuid.Parse(path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("invalid team id"))
		return
	}

	var req teamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	team, err := h.deps.UpdateTeam(r.Context(), teamID, model.TeamInfo{
		Title:      req.Title,
		APIBaseURL: req.APIBaseURL,
		APIKey:     req.APIKey,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTeamResponse(team))
}
