// Package gunner implements the polling engine that gathers per-user
// recommendations from a team endpoint: one health-gated run of batched,
// retrying fan-out requests under a single deadline.
package gunner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/recsyscourse/requestor/pkg/logger"
	"github.com/recsyscourse/requestor/pkg/metrics"
)

// Notifier delivers best-effort progress updates. Failures to notify must
// never abort a polling run.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// retryState is the per-user bookkeeping within one batch.
type retryState struct {
	attempts   int
	lastStatus int
}

// Default polling configuration constants.
const (
	defaultRecoSize       = 10
	defaultBatchSize      = 1000
	defaultMaxAttempts    = 3
	defaultMaxRespBytes   = 10_000
	defaultTimeout        = 10 * time.Minute
	defaultProgressPeriod = 0.25
	defaultURLTemplate    = "{api_base_url}/{model_name}/{user_id}"
)

// Service polls a recommendation endpoint for a population of users.
type Service struct {
	client         *http.Client
	recoSize       int
	batchSize      int
	maxAttempts    int
	maxRespBytes   int
	timeout        time.Duration
	urlTemplate    string
	progressPeriod float64
	log            logger.Logger
}

// New creates a polling service with configuration options.
func New(opts ...Option) *Service {
	s := &Service{
		client:         &http.Client{},
		recoSize:       defaultRecoSize,
		batchSize:      defaultBatchSize,
		maxAttempts:    defaultMaxAttempts,
		maxRespBytes:   defaultMaxRespBytes,
		timeout:        defaultTimeout,
		urlTemplate:    defaultURLTemplate,
		progressPeriod: defaultProgressPeriod,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.log == nil {
		s.log = logger.Get().Named("gunner")
	}

	return s
}

// GetRecos polls the endpoint for every user and returns one validated
// response per user, or fails the whole run with a typed error. Partial
// results are never returned.
func (s *Service) GetRecos(
	ctx context.Context,
	apiBaseURL, modelName string,
	users []int64,
	apiToken string,
	notifier Notifier,
) ([]RecoResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	base := strings.TrimRight(apiBaseURL, "/")

	if err := s.healthCheck(ctx, base, apiToken); err != nil {
		return nil, err
	}

	batches := chunkUsers(users, s.batchSize)
	results := make([]RecoResponse, 0, len(users))

	notified := 0.0
	for i, batch := range batches {
		batchResults, err := s.pollBatch(ctx, base, modelName, batch, apiToken)
		if err != nil {
			return nil, err
		}
		results = append(results, batchResults...)

		done := float64(i+1) / float64(len(batches))
		if notifier != nil && done-notified >= s.progressPeriod {
			notified = done
			text := fmt.Sprintf("Processed %d of %d batches", i+1, len(batches))
			if nerr := notifier.Notify(ctx, text); nerr != nil {
				s.log.Warn(ctx, "progress notification failed", logger.Error(nerr))
			}
		}
	}

	return results, nil
}

// healthCheck gates the run on GET {scheme}://{host}/health using the same
// auth header as data requests.
func (s *Service) healthCheck(ctx context.Context, base, apiToken string) error {
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("parse api base url: %w", err)
	}

	status, _, err := s.get(ctx, u.Scheme+"://"+u.Host+"/health", apiToken)
	if err != nil {
		return asRunError(err)
	}

	switch {
	case status/100 == 2:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		metrics.RecordPollFailure("authorization")
		return fmt.Errorf("%w: health check status %d", ErrAuthorization, status)
	default:
		metrics.RecordPollFailure("health")
		return fmt.Errorf("%w: health check status %d", ErrResponseNotOK, status)
	}
}

// roundResult is one user's outcome within a fan-out round.
type roundResult struct {
	userID int64
	status int
	body   []byte
}

// pollBatch drives rounds of concurrent requests over the batch's retry
// table until every user has a valid response or the run aborts.
func (s *Service) pollBatch(
	ctx context.Context,
	base, modelName string,
	batch []int64,
	apiToken string,
) ([]RecoResponse, error) {
	pending := make(map[int64]*retryState, len(batch))
	for _, id := range batch {
		pending[id] = &retryState{}
	}

	results := make([]RecoResponse, 0, len(batch))
	for len(pending) > 0 {
		ids := make([]int64, 0, len(pending))
		for id, state := range pending {
			if state.attempts >= s.maxAttempts {
				metrics.RecordPollFailure("request_limit")
				return nil, &RequestLimitError{UserID: id, LastStatus: state.lastStatus}
			}
			ids = append(ids, id)
		}
		slices.Sort(ids)

		start := time.Now()
		round := make([]roundResult, len(ids))
		g, gctx := errgroup.WithContext(ctx)
		for i, id := range ids {
			i, id := i, id
			g.Go(func() error {
				status, body, err := s.get(gctx, s.requestURL(base, modelName, id), apiToken)
				if err != nil {
					return fmt.Errorf("request for user %d: %w", id, err)
				}
				round[i] = roundResult{userID: id, status: status, body: body}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, asRunError(err)
		}
		metrics.RecordPollRound(float64(time.Since(start).Milliseconds()))

		// Fold the round back into the retry table.
		for _, rr := range round {
			if len(rr.body) > s.maxRespBytes {
				metrics.RecordPollFailure("huge_response")
				return nil, fmt.Errorf("%w: user %d sent %d bytes", ErrHugeResponseSize, rr.userID, len(rr.body))
			}

			if rr.status != http.StatusOK {
				state := pending[rr.userID]
				state.attempts++
				state.lastStatus = rr.status
				metrics.RecordPollRetry()
				continue
			}

			resp, err := ParseResponse(rr.body, s.recoSize)
			if err != nil {
				metrics.RecordPollFailure("validation")
				return nil, err
			}

			delete(pending, rr.userID)
			results = append(results, resp)
		}
	}

	return results, nil
}

// get issues one GET with the bearer token, reading at most one byte past
// the configured response ceiling.
func (s *Service) get(ctx context.Context, rawURL, apiToken string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+apiToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	metrics.RecordPollRequest()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(s.maxRespBytes)+1))
	if err != nil {
		return 0, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func (s *Service) requestURL(base, modelName string, userID int64) string {
	r := strings.NewReplacer(
		"{api_base_url}", base,
		"{model_name}", modelName,
		"{user_id}", strconv.FormatInt(userID, 10),
	)
	return r.Replace(s.urlTemplate)
}

// asRunError maps a deadline hit on the run context to the timeout kind.
func asRunError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		metrics.RecordPollFailure("timeout")
		return fmt.Errorf("%w: %w", ErrRequestTimeout, err)
	}
	return err
}

// chunkUsers partitions users into fixed-size batches, preserving order.
func chunkUsers(users []int64, size int) [][]int64 {
	if size <= 0 || len(users) == 0 {
		return nil
	}
	batches := make([][]int64, 0, (len(users)+size-1)/size)
	for start := 0; start < len(users); start += size {
		end := min(start+size, len(users))
		batches = append(batches, users[start:end])
	}
	return batches
}
