package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"plumbing_backend/platform/db"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Apply every embedded migration that has not run yet.

Examples:
  plumbctl migrate
  plumbctl migrate --status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if !status {
				if err := db.RunMigrations(cmd.Context(), cfg); err != nil {
					return err
				}
				fmt.Println("migrations applied")
				return nil
			}

			results, err := db.MigrationStatus(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tFILE")
			for _, r := range results {
				applied := "-"
				if !r.AppliedAt.IsZero() {
					applied = r.AppliedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.Source.Version, r.State, applied, r.Source.Path)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "print migration state instead of applying")
	return cmd
}
