package assessor

import "errors"

// Sentinel kinds for assessment errors.
var (
	ErrUnknownMetric   = errors.New("unknown metric")
	ErrBadInteractions = errors.New("invalid interactions data")
	ErrEmptyRecos      = errors.New("no recommendation rows to assess")
)
