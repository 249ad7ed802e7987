package gunner

import (
	"errors"
	"fmt"
)

// Sentinel kinds for polling errors. Protocol violations and authorization
// failures are fatal for the whole run; they are never retried.
var (
	ErrAuthorization             = errors.New("authorization failed")
	ErrResponseNotOK             = errors.New("health check returned non-ok status")
	ErrHugeResponseSize          = errors.New("response size limit exceeded")
	ErrRecommendationsLimitSize  = errors.New("wrong number of recommended items")
	ErrDuplicatedRecommendations = errors.New("recommended items should be unique")
	ErrMalformedResponse         = errors.New("malformed recommendation response")
	ErrRequestLimitByUser        = errors.New("request limit by user reached")
	ErrRequestTimeout            = errors.New("polling run timed out")
)

// RequestLimitError reports the user that exhausted its retry budget together
// with the last observed HTTP status for diagnosis.
type RequestLimitError struct {
	UserID     int64
	LastStatus int
}

func (e *RequestLimitError) Error() string {
	return fmt.Sprintf("user %d reached request limit, last status %d", e.UserID, e.LastStatus)
}

func (e *RequestLimitError) Unwrap() error { return ErrRequestLimitByUser }
