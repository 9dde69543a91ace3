package main

import (
	"errors"
	"fmt"
	"os"

	"plumbing_backend/internal/bootstrap"

	"github.com/spf13/cobra"
)

const passwordEnv = "PLUMBCTL_PASSWORD"

func passwordFlag(cmd *cobra.Command) (string, error) {
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv(passwordEnv)
	}
	if password == "" {
		return "", errors.New("password required: pass --password or set " + passwordEnv)
	}
	return password, nil
}

func createAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-admin [email]",
		Short: "Create a back-office admin account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := passwordFlag(cmd)
			if err != nil {
				return err
			}
			return withContainer(cmd.Context(), func(c *bootstrap.Container) error {
				user, err := c.Auth.Service().CreateAdmin(cmd.Context(), args[0], password)
				if err != nil {
					return err
				}
				fmt.Printf("created admin %s (%s)\n", user.Email, user.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringP("password", "p", "", "initial password (or "+passwordEnv+")")
	return cmd
}

func resetPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset-password [email]",
		Short: "Set a new password for an admin account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := passwordFlag(cmd)
			if err != nil {
				return err
			}
			return withContainer(cmd.Context(), func(c *bootstrap.Container) error {
				if err := c.Auth.Service().ResetPassword(cmd.Context(), args[0], password); err != nil {
					return err
				}
				fmt.Printf("password updated for %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringP("password", "p", "", "new password (or "+passwordEnv+")")
	return cmd
}
