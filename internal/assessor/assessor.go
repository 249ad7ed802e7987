// Package assessor turns polled recommendation responses into ranked rows
// and computes named quality metrics against reference interactions.
package assessor

import (
	"context"

	"github.com/recsyscourse/requestor/internal/domain/model"
	"github.com/recsyscourse/requestor/internal/gunner"
	"github.com/recsyscourse/requestor/pkg/logger"
)

// Service assesses recommendation quality for one fixed interactions table.
type Service struct {
	interactions Interactions
	metricSet    MetricSet
	log          logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates an assessor over the given interactions and metric set.
func New(interactions Interactions, metricSet MetricSet, opts ...Option) *Service {
	s := &Service{
		interactions: interactions,
		metricSet:    metricSet,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.log == nil {
		s.log = logger.Get().Named("assessor")
	}

	return s
}

// PrepareRecos flattens responses into ranked rows, one row per recommended
// item, ranks 1-based in returned order.
func PrepareRecos(responses []gunner.RecoResponse) []gunner.Row {
	rows := make([]gunner.Row, 0, len(responses))
	for _, resp := range responses {
		rows = append(rows, resp.Prepare()...)
	}
	return rows
}

// EstimateRecos computes every configured metric over the rows, preserving
// the metric set order. Empty input is rejected: metric values over zero
// users are undefined.
func (s *Service) EstimateRecos(ctx context.Context, rows []gunner.Row) ([]model.Metric, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyRecos
	}

	recos := groupByUser(rows)

	out := make([]model.Metric, 0, len(s.metricSet))
	for _, nm := range s.metricSet {
		value := nm.Fn(recos, s.interactions)
		s.log.Debug(ctx, "metric computed",
			logger.String("metric", nm.Name),
			logger.Float64("value", value),
		)
		out = append(out, model.Metric{Name: nm.Name, Value: value})
	}
	return out, nil
}

// groupByUser rebuilds per-user ordered item lists from flattened rows,
// keeping users in order of first appearance.
func groupByUser(rows []gunner.Row) []UserRecos {
	index := make(map[int64]int)
	recos := make([]UserRecos, 0)
	for _, row := range rows {
		i, ok := index[row.UserID]
		if !ok {
			i = len(recos)
			index[row.UserID] = i
			recos = append(recos, UserRecos{UserID: row.UserID})
		}
		recos[i].Items = append(recos[i].Items, row.ItemID)
	}
	return recos
}
