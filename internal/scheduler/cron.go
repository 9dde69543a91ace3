package scheduler

import (
	"context"
	"fmt"

	"plumbing_backend/platform/config"
	"plumbing_backend/platform/logger"

	"github.com/robfig/cron/v3"
)

// CronRunner runs the recurring jobs in-process. It is used when Redis is not
// configured, so runs are neither queued nor retried.
type CronRunner struct {
	cron *cron.Cron
	log  *logger.Logger
}

func NewCronRunner(cfg config.SchedulerConfig, jobs *Jobs, log *logger.Logger) (*CronRunner, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	for _, entry := range []struct {
		name, spec string
		run        func(context.Context) error
	}{
		{TaskNurtureProcess, cfg.GetNurtureCron(), jobs.ProcessNurture},
		{TaskReviewsSync, cfg.GetReviewSyncCron(), jobs.SyncReviews},
	} {
		if entry.spec == "" {
			continue
		}
		name, run := entry.name, entry.run
		if _, err := c.AddFunc(entry.spec, func() {
			if err := run(context.Background()); err != nil {
				log.Error("scheduled job failed", "job", name, "error", err)
			}
		}); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", name, err)
		}
	}

	return &CronRunner{cron: c, log: log}, nil
}

// Entries reports how many jobs are scheduled.
func (r *CronRunner) Entries() int {
	return len(r.cron.Entries())
}

func (r *CronRunner) Run(ctx context.Context) {
	r.cron.Start()
	<-ctx.Done()
	<-r.cron.Stop().Done()
}
