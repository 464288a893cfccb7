package adoption

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/billtrack/billtrack/internal/platform/httpx"
	"github.com/billtrack/billtrack/internal/rbac"
)

// Handler exposes adoption endpoints to supervisors.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers adoption routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CapAdopt))
		r.Get("/adoptions", h.listAdopted)
		r.Get("/adoptions/available", h.listAvailable)
		r.Post("/adoptions/{userID}", h.adopt)
		r.Delete("/adoptions/{userID}", h.drop)
	})
}

func (h *Handler) adopt(w http.ResponseWriter, r *http.Request) {
	actor, err := rbac.CurrentActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	userID, err := httpx.PathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	link, err := h.service.Adopt(r.Context(), actor, userID)
	if err != nil {
		h.fail(w, "adopt user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, link)
}

func (h *Handler) drop(w http.ResponseWriter, r *http.Request) {
	actor, err := rbac.CurrentActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	userID, err := httpx.PathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Drop(r.Context(), actor, userID); err != nil {
		h.fail(w, "drop user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listAdopted(w http.ResponseWriter, r *http.Request) {
	actor, err := rbac.CurrentActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	users, err := h.service.ListAdopted(r.Context(), actor)
	if err != nil {
		h.fail(w, "list adopted", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) listAvailable(w http.ResponseWriter, r *http.Request) {
	actor, err := rbac.CurrentActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	users, err := h.service.ListAvailable(r.Context(), actor)
	if err != nil {
		h.fail(w, "list available", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
