package accounts

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/billtrack/billtrack/internal/platform/httpx"
	"github.com/billtrack/billtrack/internal/rbac"
	"github.com/billtrack/billtrack/internal/shared"
)

// Handler exposes the account directory and escalation flow.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me", h.me)
	r.Post("/escalations", h.requestEscalation)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CapDecideEscalation))
		r.Get("/escalations", h.listEscalations)
		r.Post("/escalations/{actorID}/{role}", h.decideEscalation)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CapDecideAccount))
		r.Get("/accounts", h.listAccounts)
		r.Post("/accounts/{id}/approve", h.approveAccount)
		r.Post("/accounts/{id}/deny", h.denyAccount)
	})
}

type escalationRequest struct {
	TargetRole string `json:"target_role" validate:"required,oneof=supervisor admin"`
}

type decisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve deny"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	actor, err := rbac.CurrentActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, actor)
}

func (h *Handler) requestEscalation(w http.ResponseWriter, r *http.Request) {
	actor, err := rbac.CurrentActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req escalationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	target, err := ParseTargetRole(req.TargetRole)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	e, err := h.service.RequestEscalation(r.Context(), actor, target)
	if err != nil {
		h.fail(w, "request escalation", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, e)
}

func (h *Handler) listEscalations(w http.ResponseWriter, r *http.Request) {
	actor, err := rbac.CurrentActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	target, err := ParseTargetRole(r.URL.Query().Get("role"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListPendingEscalations(r.Context(), actor, target)
	if err != nil {
		h.fail(w, "list escalations", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"escalations": items})
}

func (h *Handler) decideEscalation(w http.ResponseWriter, r *http.Request) {
	actor, err := rbac.CurrentActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actorID, err := httpx.PathID(r, "actorID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	target, err := ParseTargetRole(chi.URLParam(r, "role"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	decision, err := ParseDecision(req.Decision)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	e, err := h.service.DecideEscalation(r.Context(), actor, actorID, target, decision)
	if err != nil {
		h.fail(w, "decide escalation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	actor, err := rbac.CurrentActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	status := shared.AccountStatus(r.URL.Query().Get("status"))
	items, err := h.service.ListAccounts(r.Context(), actor, status)
	if err != nil {
		h.fail(w, "list accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": items})
}

func (h *Handler) approveAccount(w http.ResponseWriter, r *http.Request) {
	h.decideAccount(w, r, "approve account", h.service.ApproveAccount)
}

func (h *Handler) denyAccount(w http.ResponseWriter, r *http.Request) {
	h.decideAccount(w, r, "deny account", h.service.DenyAccount)
}

func (h *Handler) decideAccount(w http.ResponseWriter, r *http.Request, msg string, decide func(context.Context, shared.Actor, int64) (shared.Actor, error)) {
	actor, err := rbac.CurrentActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	updated, err := decide(r.Context(), actor, id)
	if err != nil {
		h.fail(w, msg, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
