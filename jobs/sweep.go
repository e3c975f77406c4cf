package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/atlas-accounts/atlas-accounts/internal/jobs"
)

// CodeSweeper deletes expired or used activation codes.
type CodeSweeper interface {
	SweepExpiredCodes(ctx context.Context) (int64, error)
}

// SweepJob runs the periodic activation code sweep.
type SweepJob struct {
	store   CodeSweeper
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewSweepJob constructs the sweep job.
func NewSweepJob(store CodeSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *SweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepJob{store: store, logger: logger, metrics: metrics}
}

// Handle processes TaskSweepCodes. A second run immediately after finds
// nothing new to remove.
func (j *SweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.metrics.Track("codes_sweep")
	count, err := j.store.SweepExpiredCodes(ctx)
	if err != nil {
		j.logger.Error("sweep activation codes", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger.Info("swept activation codes", slog.Int64("removed", count))
	return tracker.End(nil)
}
