// Command plumbctl is the operator CLI for migrations, admin accounts,
// customer imports and one-off job runs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"plumbing_backend/internal/bootstrap"
	"plumbing_backend/platform/config"
	"plumbing_backend/platform/logger"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "plumbctl",
		Short:         "Operator tooling for the plumbing backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(createAdminCmd())
	rootCmd.AddCommand(resetPasswordCmd())
	rootCmd.AddCommand(importCustomersCmd())
	rootCmd.AddCommand(processNurtureCmd())
	rootCmd.AddCommand(syncReviewsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logger.New(cfg.Env), nil
}

// withContainer builds the modules, runs fn and releases connections.
func withContainer(ctx context.Context, fn func(*bootstrap.Container) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := bootstrap.Build(ctx, cfg, log, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}
