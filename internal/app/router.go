package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/billtrack/billtrack/internal/accounts"
	"github.com/billtrack/billtrack/internal/adoption"
	"github.com/billtrack/billtrack/internal/auth"
	"github.com/billtrack/billtrack/internal/bills"
	"github.com/billtrack/billtrack/internal/observability"
	"github.com/billtrack/billtrack/internal/platform/httpx"
	"github.com/billtrack/billtrack/internal/proposals"
	"github.com/billtrack/billtrack/internal/rbac"
	"github.com/billtrack/billtrack/internal/shared"
	"github.com/billtrack/billtrack/jobs"
)

// Pinger reports backing store health for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	SessionManager  *shared.SessionManager
	CSRFManager     *shared.CSRFManager
	AuthHandler     *auth.Handler
	AccountsHandler *accounts.Handler
	AdoptionHandler *adoption.Handler
	BillsHandler    *bills.Handler
	ProposalHandler *proposals.Handler
	JobHandler      *jobs.Handler
	RBACMiddleware  rbac.Middleware
	Metrics         *observability.Metrics
	Checks          map[string]Pinger
}

// NewRouter constructs the chi.Router with billtrack defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondError(w, shared.ErrNotFound)
	})

	r.Get("/healthz", healthz(logger, params.Checks))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			CSRFManager:    params.CSRFManager,
			Metrics:        params.Metrics,
		}) {
			r.Use(mw)
		}
		r.Use(chimw.Logger)

		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
		r.Route("/api", func(r chi.Router) {
			r.Use(params.RBACMiddleware.Authenticate)
			if params.AccountsHandler != nil {
				params.AccountsHandler.MountRoutes(r)
			}
			if params.AdoptionHandler != nil {
				params.AdoptionHandler.MountRoutes(r)
			}
			if params.BillsHandler != nil {
				params.BillsHandler.MountRoutes(r)
			}
			if params.ProposalHandler != nil {
				params.ProposalHandler.MountRoutes(r)
			}
		})
	})

	return r
}

func healthz(logger *slog.Logger, checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		report := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check.Ping(ctx); err != nil {
				logger.Warn("health check failed", slog.String("check", name), slog.Any("error", err))
				report[name] = "down"
				report["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "up"
		}
		httpx.JSON(w, status, report)
	}
}
