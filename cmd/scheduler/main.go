package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"plumbing_backend/internal/bootstrap"
	"plumbing_backend/internal/scheduler"
	"plumbing_backend/platform/config"
	"plumbing_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := bootstrap.Build(ctx, cfg, log, bootstrap.Options{})
	if err != nil {
		log.Error("failed to initialize application", "error", err)
		panic("failed to initialize application: " + err.Error())
	}
	defer c.Close()

	jobs := c.Jobs()

	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; running jobs in-process without retries")
		runner, err := scheduler.NewCronRunner(cfg, jobs, log)
		if err != nil {
			log.Error("failed to initialize cron runner", "error", err)
			panic("failed to initialize cron runner: " + err.Error())
		}
		runner.Run(ctx)
		log.Info("scheduler stopped")
		return
	}

	worker, err := scheduler.NewWorker(cfg, jobs, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}
	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		periodic.Run(ctx)
	}()

	log.Info("scheduler running", "nurtureCron", cfg.GetNurtureCron(), "reviewSyncCron", cfg.GetReviewSyncCron())
	wg.Wait()
	log.Info("scheduler stopped")
}
