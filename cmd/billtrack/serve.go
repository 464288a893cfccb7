package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/billtrack/billtrack/internal/accounts"
	"github.com/billtrack/billtrack/internal/adoption"
	"github.com/billtrack/billtrack/internal/app"
	"github.com/billtrack/billtrack/internal/auth"
	"github.com/billtrack/billtrack/internal/bills"
	"github.com/billtrack/billtrack/internal/observability"
	"github.com/billtrack/billtrack/internal/platform/cache"
	"github.com/billtrack/billtrack/internal/platform/db"
	"github.com/billtrack/billtrack/internal/proposals"
	"github.com/billtrack/billtrack/internal/rbac"
	"github.com/billtrack/billtrack/internal/shared"
	"github.com/billtrack/billtrack/jobs"
)

func serveCommand() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if app.InTestMode() {
				slog.Default().Info("test mode detected, skipping runtime startup")
				return nil
			}
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("migrate") {
				cfg.AutoMigrate = migrate
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := db.RunMigrations(ctx, pool); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	queueOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	queue := asynq.NewClient(queueOpts)
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(queueOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	notifier := jobs.NewNotifier(queue, logger)
	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	accountsRepo := accounts.NewRepository(pool)
	accountsService := accounts.NewService(accountsRepo, notifier, logger)
	rbacMiddleware := rbac.Middleware{Actors: accountsService, Logger: logger}

	authService := auth.NewService(auth.NewRepository(pool))
	adoptionService := adoption.NewService(adoption.NewRepository(pool), logger)
	billsService := bills.NewService(bills.NewRepository(pool), logger)
	proposalService := proposals.NewService(proposals.NewRepository(pool), notifier, metrics.Workflow(), logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		AuthHandler:     auth.NewHandler(logger, authService, sessionManager, csrfManager),
		AccountsHandler: accounts.NewHandler(logger, accountsService, rbacMiddleware),
		AdoptionHandler: adoption.NewHandler(logger, adoptionService, rbacMiddleware),
		BillsHandler:    bills.NewHandler(logger, billsService, rbacMiddleware),
		ProposalHandler: proposals.NewHandler(logger, proposalService, rbacMiddleware),
		JobHandler:      jobs.NewHandler(inspector, logger),
		RBACMiddleware:  rbacMiddleware,
		Metrics:         metrics,
		Checks: map[string]app.Pinger{
			"postgres": pool,
			"redis": app.PingFunc(func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}),
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.AppShutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown", slog.Any("error", err))
			return err
		}
		return nil
	})
	return g.Wait()
}
