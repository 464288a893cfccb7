package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/billtrack/billtrack/internal/platform/httpx"
	"github.com/billtrack/billtrack/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/csrf", h.handleCSRF)
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type registerForm struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"max=200"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type sessionResponse struct {
	Actor     shared.Actor `json:"actor"`
	CSRFToken string       `json:"csrf_token"`
}

func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(sess)
	if err != nil {
		h.logger.Error("issue csrf token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var form registerForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, err := h.service.Register(r.Context(), RegisterInput{Email: form.Email, Name: form.Name, Password: form.Password})
	if err != nil {
		if httpx.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("register", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("account registered", slog.Int64("actor_id", actor.ID))
	httpx.JSON(w, http.StatusCreated, actor)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, form); err != nil {
		httpx.RespondError(w, shared.ErrInvalidCredentials)
		return
	}
	actor, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		if httpx.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("authenticate", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if err := h.sessionManager.Renew(r.Context(), sess); err != nil {
		h.logger.Error("renew session", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sess.SetActor(actor.ID)
	token, err := h.csrfManager.Rotate(sess)
	if err != nil {
		h.logger.Error("issue csrf token", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{Actor: actor, CSRFToken: token})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}
