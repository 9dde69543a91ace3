package scheduler

import (
	"context"

	"plumbing_backend/platform/config"
	"plumbing_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, jobs *Jobs, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(cfg)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 5
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
		Logger: newAsynqLogger(log),
	})

	w := &Worker{
		server: server,
		mux:    newMux(jobs, log),
		log:    log,
	}
	return w, nil
}

func newMux(jobs *Jobs, log *logger.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskNurtureProcess, func(ctx context.Context, task *asynq.Task) error {
		payload, err := ParseTriggerPayload(task)
		if err != nil {
			return err
		}
		log.Debug("nurture task received", "trigger", payload.Trigger)
		return jobs.ProcessNurture(ctx)
	})
	mux.HandleFunc(TaskReviewsSync, func(ctx context.Context, task *asynq.Task) error {
		payload, err := ParseTriggerPayload(task)
		if err != nil {
			return err
		}
		log.Debug("review sync task received", "trigger", payload.Trigger)
		return jobs.SyncReviews(ctx)
	})
	return mux
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
