package scheduler

import (
	"context"
	"fmt"

	"plumbing_backend/platform/config"
	"plumbing_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic enqueues the recurring tasks on their cron specs.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	opt, err := redisClientOpt(cfg)
	if err != nil {
		return nil, err
	}

	s := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Logger: newAsynqLogger(log),
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				log.Warn("periodic enqueue failed", "error", err)
				return
			}
			log.Debug("periodic task enqueued", "type", info.Type, "id", info.ID)
		},
	})

	queue := asynq.Queue(queueName(cfg))
	for _, entry := range []struct {
		spec, taskType string
	}{
		{cfg.GetNurtureCron(), TaskNurtureProcess},
		{cfg.GetReviewSyncCron(), TaskReviewsSync},
	} {
		if entry.spec == "" {
			log.Info("periodic task disabled", "type", entry.taskType)
			continue
		}
		if _, err := s.Register(entry.spec, asynq.NewTask(entry.taskType, nil), queue); err != nil {
			return nil, fmt.Errorf("register %s: %w", entry.taskType, err)
		}
	}

	return &Periodic{scheduler: s, log: log}, nil
}

func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}
	if err := p.scheduler.Start(); err != nil {
		p.log.Error("periodic scheduler failed to start", "error", err)
		return
	}
	<-ctx.Done()
	p.scheduler.Shutdown()
}
