package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrTeamNotFound       = errors.New("team not found")
	ErrTeamAlreadyExists  = errors.New("team already exists")
	ErrModelNotFound      = errors.New("model not found")
	ErrModelAlreadyExists = errors.New("model already exists")
	ErrTrialNotFound       = errors.New("trial not found")
	ErrInvalidTransition   = errors.New("invalid trial status transition")
	ErrMetricAlreadyExists = errors.New("metric already recorded for trial")
)
