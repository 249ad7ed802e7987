package service

import "errors"

// Sentinel kinds for service lifecycle errors.
var (
	ErrNotConfigured = errors.New("service dependency not configured")
	ErrNotStarted    = errors.New("service not started")
)
