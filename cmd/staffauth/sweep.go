// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tablewise/staffauth/internal/config"
	"github.com/tablewise/staffauth/internal/notify"
)

func newSweepCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired sessions and reset tokens once",
		Long: `Delete expired sessions and used or expired password reset tokens.
serve does this periodically; sweep is for cron-style deployments.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRepositories(cmd, deps, func(ctx context.Context, d *Deps, repos *Repositories, cfg *config.Config) error {
				logger := newLogger(cfg, d)
				dispatcher, err := notify.NewLogDispatcher(cfg.Reset.BaseURL, false, logger)
				if err != nil {
					return err
				}
				svc, err := newServices(repos, d.HasherFactory(cfg.Hasher.Concurrency), dispatcher, logger)
				if err != nil {
					return err
				}

				n, err := svc.sessions.SweepExpired(ctx)
				if err != nil {
					return err
				}
				cmd.Printf("Removed %d expired session(s)\n", n)

				n, err = svc.resets.SweepExpired(ctx)
				if err != nil {
					return err
				}
				cmd.Printf("Removed %d expired reset token(s)\n", n)
				return nil
			})
		},
	}
	cmd.Flags().String("database-url", "", "PostgreSQL URL (default: $DATABASE_URL)")
	return cmd
}
