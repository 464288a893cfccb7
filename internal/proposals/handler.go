package proposals

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/billtrack/billtrack/internal/bills"
	"github.com/billtrack/billtrack/internal/platform/httpx"
	"github.com/billtrack/billtrack/internal/rbac"
)

const maxListLimit = 200

// Handler exposes the proposal workflow over JSON.
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

// MountRoutes registers proposal routes. The router must already run
// rbac.Middleware.Authenticate.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/proposals", h.listPending)
	r.Get("/proposals/{id}", h.getProposal)
	r.Get("/bills/{id}/proposals", h.history)
	r.With(h.rbac.Require(rbac.CapPropose)).Post("/proposals", h.create)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CapApprove))
		r.Get("/proposals/queue", h.queue)
		r.Post("/proposals/{id}/resolve", h.resolve)
	})
}

type createRequest struct {
	BillID        int64  `json:"bill_id" validate:"required,gt=0"`
	ProposedStage string `json:"proposed_stage" validate:"required"`
	Note          string `json:"note"`
}

type resolveRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
}

type listResponse struct {
	Proposals  []Proposal `json:"proposals"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, err := rbac.CurrentActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	stage, err := bills.ParseStage(req.ProposedStage)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Create(r.Context(), actor, CreateInput{BillID: req.BillID, ProposedStage: stage, Note: req.Note})
	if err != nil {
		h.fail(w, "create proposal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	filter := Filter{}
	var err error
	if filter.BillID, err = httpx.QueryID(r, "bill_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.ProposerID, err = httpx.QueryID(r, "proposer_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.After, err = ParseCursor(r.URL.Query().Get("after")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, err := h.limit(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := Collect(h.service.ListPending(r.Context(), filter), limit)
	if err != nil {
		h.fail(w, "list pending proposals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page(items, limit))
}

func (h *Handler) queue(w http.ResponseWriter, r *http.Request) {
	actor, err := rbac.CurrentActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	after, err := ParseCursor(r.URL.Query().Get("after"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, err := h.limit(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	seq, err := h.service.ReviewQueue(r.Context(), actor, after)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := Collect(seq, limit)
	if err != nil {
		h.fail(w, "review queue", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page(items, limit))
}

func (h *Handler) getProposal(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get proposal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.History(r.Context(), id)
	if err != nil {
		h.fail(w, "proposal history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"proposals": items})
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
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
	var req resolveRequest
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
	outcome, err := h.service.Resolve(r.Context(), id, decision, actor)
	if err != nil {
		h.fail(w, "resolve proposal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, outcome)
}

func (h *Handler) limit(r *http.Request) (int, error) {
	limit, err := httpx.QueryInt(r, "limit", defaultPageSize)
	if err != nil {
		return 0, err
	}
	if limit <= 0 || limit > maxListLimit {
		limit = defaultPageSize
	}
	return limit, nil
}

func page(items []Proposal, limit int) listResponse {
	resp := listResponse{Proposals: items}
	if len(items) == limit {
		resp.NextCursor = CursorOf(items[len(items)-1]).Encode()
	}
	return resp
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
