package leaderboard

import (
	"context"

	"github.com/recsyscourse/requestor/internal/domain/model"
	"github.com/recsyscourse/requestor/pkg/logger"
)

// LogPublisher writes each recomputed standing to the log. It stands in for
// an external sheet or dashboard publisher.
type LogPublisher struct {
	log logger.Logger
}

// NewLogPublisher creates a publisher writing to the given logger.
func NewLogPublisher(log logger.Logger) *LogPublisher {
	if log == nil {
		log = logger.Get().Named("leaderboard")
	}
	return &LogPublisher{log: log}
}

// PublishGlobal logs the ordered global standings.
func (p *LogPublisher) PublishGlobal(ctx context.Context, rows []model.GlobalLeaderboardRow) error {
	for i, row := range rows {
		fields := []logger.Field{
			logger.Int("place", i + 1),
			logger.String("team", row.TeamName),
			logger.Int("attempts", row.NAttempts),
		}
		if row.BestScore != nil {
			fields = append(fields, logger.Float64("best_score", *row.BestScore))
		}
		p.log.Info(ctx, "leaderboard standing", fields...)
	}
	return nil
}
