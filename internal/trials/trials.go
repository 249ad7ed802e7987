// Package trials holds the trial lifecycle rules and the daily admission
// control that gates new evaluation runs.
package trials

import (
	"fmt"

	"github.com/recsyscourse/requestor/internal/domain/model"
)

// Limits are the per-team daily admission quotas.
type Limits struct {
	MaxSuccessPerDay int
	MaxWaiting       int
	MaxFailedPerDay  int
}

// DefaultLimits mirror the course policy: 5 successful runs a day, one
// run in flight, 20 failures a day.
func DefaultLimits() Limits {
	return Limits{
		MaxSuccessPerDay: 5,
		MaxWaiting:       1,
		MaxFailedPerDay:  20,
	}
}

// ValidateInitialStatus rejects creating a trial that is already terminal.
func ValidateInitialStatus(status model.TrialStatus) error {
	if !model.ValidTrialStatus(status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidStatus, status)
	}
	if model.IsTerminal(status) {
		return fmt.Errorf("%w: cannot create trial in terminal status %q", ErrInvalidStatus, status)
	}
	return nil
}

// ValidateFinalStatus rejects finalizing a trial into a non-terminal state.
func ValidateFinalStatus(status model.TrialStatus) error {
	if !model.ValidTrialStatus(status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidStatus, status)
	}
	if !model.IsTerminal(status) {
		return fmt.Errorf("%w: cannot finalize trial into %q", ErrInvalidStatus, status)
	}
	return nil
}

// CheckAdmission decides whether a team may start a new trial today, given
// its per-status trial counts. A run occupies the in-flight quota from
// admission until it reaches a terminal status, so waiting and started
// trials both count against MaxWaiting. The check-then-create sequence
// holds no lock: two simultaneous requests may both pass, which is accepted
// looseness.
func CheckAdmission(stats model.TrialStats, limits Limits) error {
	inFlight := stats[model.TrialStatusWaiting] + stats[model.TrialStatusStarted]
	if inFlight >= limits.MaxWaiting {
		return &AdmissionError{Status: model.TrialStatusWaiting, Count: inFlight, Limit: limits.MaxWaiting}
	}

	checks := []struct {
		status model.TrialStatus
		limit  int
	}{
		{model.TrialStatusSuccess, limits.MaxSuccessPerDay},
		{model.TrialStatusFailed, limits.MaxFailedPerDay},
	}

	for _, c := range checks {
		if count := stats[c.status]; count >= c.limit {
			return &AdmissionError{Status: c.status, Count: count, Limit: c.limit}
		}
	}
	return nil
}
