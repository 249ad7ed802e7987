// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/google/uuid"
)

// TeamInfo carries the mutable attributes of a registered team.
type TeamInfo struct {
	Title      string
	APIBaseURL string
	APIKey     string // optional bearer token for the team endpoint
}

// Team is a registered participant owning models and trials.
type Team struct {
	TeamInfo
	TeamID    uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ModelInfo carries the attributes of a recommendation model registration.
type ModelInfo struct {
	TeamID      uuid.UUID
	Name        string
	Description string
}

// Model is a named recommendation model exposed by a team endpoint.
type Model struct {
	ModelInfo
	ModelID   uuid.UUID
	CreatedAt time.Time
}

// Metric is one named quality value produced by assessing a trial.
type Metric struct {
	Name  string
	Value float64
}

// GlobalLeaderboardRow is one team's standing across all of its models.
// BestScore and LastAttempt are nil for teams without a successful trial.
type GlobalLeaderboardRow struct {
	TeamName    string
	BestScore   *float64
	NAttempts   int
	LastAttempt *time.Time
}

// ModelLeaderboardRow is one (team, model) standing. Only pairs with at
// least one successful trial are represented.
type ModelLeaderboardRow struct {
	TeamName    string
	ModelName   string
	BestScore   float64
	NAttempts   int
	LastAttempt time.Time
}
