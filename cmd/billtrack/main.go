package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/billtrack/billtrack/internal/app"
)

const programName = "billtrack"

var globalFlags = struct {
	logFormat string
	logLevel  string
}{}

// loadRuntime reads the environment configuration and applies flag overrides.
func loadRuntime() (*app.Config, *slog.Logger, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if globalFlags.logFormat != "" {
		cfg.LogFormat = globalFlags.logFormat
	}
	if globalFlags.logLevel != "" {
		cfg.LogLevel = globalFlags.logLevel
	}
	logger := app.NewLogger(cfg).With(slog.String("component", programName))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           programName,
		Short:         "Legislative bill stage tracking service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&globalFlags.logFormat, "log-format", "", "override LOG_FORMAT (json or pretty)")
	root.PersistentFlags().StringVar(&globalFlags.logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(serveCommand())
	root.AddCommand(migrateCommand())
	root.AddCommand(stagesCommand())
	root.AddCommand(adminCommand())
	root.AddCommand(jobsCommand())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		stop()
		os.Exit(1)
	}
}
