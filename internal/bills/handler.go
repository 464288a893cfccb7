package bills

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/billtrack/billtrack/internal/platform/httpx"
	"github.com/billtrack/billtrack/internal/rbac"
)

// Handler exposes the bill registry over JSON.
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

// MountRoutes registers bill routes. The router must already run
// rbac.Middleware.Authenticate.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stages", h.listStages)
	r.Get("/bills", h.listBills)
	r.Get("/bills/{id}", h.getBill)
	r.With(h.rbac.Require(rbac.CapRegisterBill)).Post("/bills", h.registerBill)
}

type registerRequest struct {
	BillNumber string `json:"bill_number" validate:"required,max=32"`
	BillTitle  string `json:"bill_title" validate:"max=500"`
	Stage      string `json:"stage" validate:"omitempty"`
}

func (h *Handler) listStages(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"stages": h.service.Stages()})
}

func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	if number := r.URL.Query().Get("number"); number != "" {
		bill, err := h.service.GetByNumber(r.Context(), number)
		if err != nil {
			h.fail(w, "get bill by number", err)
			return
		}
		httpx.JSON(w, http.StatusOK, bill)
		return
	}
	page, err := httpx.QueryInt(r, "page", 1)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	perPage, err := httpx.QueryInt(r, "per_page", 0)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		h.fail(w, "list bills", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bill, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get bill", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) registerBill(w http.ResponseWriter, r *http.Request) {
	actor, err := rbac.CurrentActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := RegisterInput{BillNumber: req.BillNumber, BillTitle: req.BillTitle}
	if req.Stage != "" {
		stage, err := ParseStage(req.Stage)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		in.Stage = stage
	}
	bill, err := h.service.Register(r.Context(), actor, in)
	if err != nil {
		h.fail(w, "register bill", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
