package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/billtrack/billtrack/internal/accounts"
	"github.com/billtrack/billtrack/internal/platform/db"
)

func adminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Operator account maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "promote <email>",
		Short: "Activate a registered account and grant it the admin role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			pool, err := db.New(cmd.Context(), cfg.PGDSN, cfg.PoolOptions())
			if err != nil {
				return err
			}
			defer pool.Close()
			actor, err := accounts.NewRepository(pool).PromoteAdmin(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			logger.Info("account promoted", slog.Int64("actor_id", actor.ID), slog.String("email", actor.Email))
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", actor.ID, actor.Email, actor.Role)
			return nil
		},
	})
	return cmd
}
