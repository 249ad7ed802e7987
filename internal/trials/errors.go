package trials

import (
	"errors"
	"fmt"

	"github.com/recsyscourse/requestor/internal/domain/model"
)

// Sentinel kinds for lifecycle and admission errors.
var (
	ErrInvalidStatus   = errors.New("invalid trial status")
	ErrAdmissionDenied = errors.New("daily trial limit reached")
)

// AdmissionError reports which daily quota blocked a new trial.
type AdmissionError struct {
	Status model.TrialStatus
	Count  int
	Limit  int
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("daily limit reached for %s trials: %d of %d", e.Status, e.Count, e.Limit)
}

func (e *AdmissionError) Unwrap() error { return ErrAdmissionDenied }
