package scheduler

import (
	"context"
	"errors"

	nurtureservice "plumbing_backend/internal/nurture/service"
	"plumbing_backend/internal/reviews/serpapi"
	reviewsservice "plumbing_backend/internal/reviews/service"
	"plumbing_backend/platform/logger"
)

// NurtureProcessor runs one pass of the review drip.
type NurtureProcessor interface {
	ProcessPendingEmails(ctx context.Context) (nurtureservice.ProcessSummary, error)
}

// ReviewSyncer pulls new Google reviews.
type ReviewSyncer interface {
	Sync(ctx context.Context) (reviewsservice.SyncSummary, error)
}

// Jobs holds the recurring work shared by the asynq worker and the cron runner.
// Either field may be nil, which turns the job into a no-op.
type Jobs struct {
	Nurture NurtureProcessor
	Reviews ReviewSyncer
	Log     *logger.Logger
}

// ProcessNurture sends due drip emails.
func (j *Jobs) ProcessNurture(ctx context.Context) error {
	if j.Nurture == nil {
		return nil
	}
	summary, err := j.Nurture.ProcessPendingEmails(ctx)
	if err != nil {
		return err
	}
	if summary.Blocked != "" {
		j.Log.Info("nurture run skipped", "reason", summary.Blocked)
		return nil
	}
	j.Log.Info("nurture run finished",
		"scanned", summary.Scanned,
		"due", summary.Due,
		"sent", summary.Sent,
		"failed", summary.Failed,
	)
	return nil
}

// SyncReviews fetches new reviews. A missing review source is not retried.
func (j *Jobs) SyncReviews(ctx context.Context) error {
	if j.Reviews == nil {
		return nil
	}
	summary, err := j.Reviews.Sync(ctx)
	if err != nil {
		if errors.Is(err, serpapi.ErrNotConfigured) {
			j.Log.Warn("review sync skipped", "error", err)
			return nil
		}
		return err
	}
	j.Log.Info("review sync finished", "fetched", summary.Fetched, "new", summary.New, "positive", summary.Positive)
	return nil
}
