package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/billtrack/billtrack/internal/platform/db"
)

func migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			pool, err := db.New(cmd.Context(), cfg.PGDSN, cfg.PoolOptions())
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := db.RunMigrations(cmd.Context(), pool); err != nil {
				return err
			}
			version, err := db.MigrationVersion(cmd.Context(), pool)
			if err != nil {
				return err
			}
			logger.Info("migrations applied", slog.Int64("version", version))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadRuntime()
			if err != nil {
				return err
			}
			pool, err := db.New(cmd.Context(), cfg.PGDSN, cfg.PoolOptions())
			if err != nil {
				return err
			}
			defer pool.Close()
			version, err := db.MigrationVersion(cmd.Context(), pool)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	})
	return cmd
}
