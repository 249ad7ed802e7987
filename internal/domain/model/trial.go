package model

import (
	"time"

	"github.com/google/uuid"
)

// TrialStatus is the lifecycle state of an evaluation trial.
type TrialStatus string

// Trial lifecycle states. A trial moves waiting -> started -> {success, failed}.
const (
	TrialStatusWaiting TrialStatus = "waiting"
	TrialStatusStarted TrialStatus = "started"
	TrialStatusSuccess TrialStatus = "success"
	TrialStatusFailed  TrialStatus = "failed"
)

// IsTerminal reports whether status is a terminal lifecycle state.
func IsTerminal(status TrialStatus) bool {
	return status == TrialStatusSuccess || status == TrialStatusFailed
}

// ValidTrialStatus reports whether status is one of the known states.
func ValidTrialStatus(status TrialStatus) bool {
	switch status {
	case TrialStatusWaiting, TrialStatusStarted, TrialStatusSuccess, TrialStatusFailed:
		return true
	default:
		return false
	}
}

// Trial is one evaluation run of a team model against the test population.
// FinishedAt is nil until the trial reaches a terminal status.
type Trial struct {
	TrialID    uuid.UUID
	ModelID    uuid.UUID
	CreatedAt  time.Time
	FinishedAt *time.Time
	Status     TrialStatus
}

// TrialStats counts a team's trials per status for one calendar day.
type TrialStats map[TrialStatus]int
