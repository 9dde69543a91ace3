package main

import (
	"context"
	"fmt"

	"plumbing_backend/internal/bootstrap"
	"plumbing_backend/internal/scheduler"
	"plumbing_backend/platform/config"

	"github.com/spf13/cobra"
)

func processNurtureCmd() *cobra.Command {
	var enqueue bool
	cmd := &cobra.Command{
		Use:   "process-nurture",
		Short: "Send every due review drip email now",
		RunE: func(cmd *cobra.Command, args []string) error {
			if enqueue {
				return enqueueTask(cmd.Context(), func(ctx context.Context, cl *scheduler.Client) (string, error) {
					return cl.EnqueueNurtureProcess(ctx, "plumbctl")
				})
			}
			return withContainer(cmd.Context(), func(c *bootstrap.Container) error {
				summary, err := c.Nurture.Service().ProcessPendingEmails(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(summary)
			})
		},
	}
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "queue the run for the scheduler worker instead of running inline")
	return cmd
}

func syncReviewsCmd() *cobra.Command {
	var enqueue bool
	cmd := &cobra.Command{
		Use:   "sync-reviews",
		Short: "Pull the latest Google reviews now",
		RunE: func(cmd *cobra.Command, args []string) error {
			if enqueue {
				return enqueueTask(cmd.Context(), func(ctx context.Context, cl *scheduler.Client) (string, error) {
					return cl.EnqueueReviewsSync(ctx, "plumbctl")
				})
			}
			return withContainer(cmd.Context(), func(c *bootstrap.Container) error {
				summary, err := c.Reviews.Service().Sync(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(summary)
			})
		},
	}
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "queue the run for the scheduler worker instead of running inline")
	return cmd
}

func enqueueTask(ctx context.Context, fn func(context.Context, *scheduler.Client) (string, error)) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cl, err := scheduler.NewClient(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = cl.Close() }()

	id, err := fn(ctx, cl)
	if err != nil {
		return err
	}
	fmt.Printf("enqueued task %s\n", id)
	return nil
}
