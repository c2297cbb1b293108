package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/keystone-id/keystone/internal/platform/httpx"
	"github.com/keystone-id/keystone/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	guard      *Guard
	respond    *httpx.Responder
	validate   *validator.Validate
	refreshTTL time.Duration
	secure     bool
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard *Guard, respond *httpx.Responder, refreshTTL time.Duration, secure bool) *Handler {
	return &Handler{
		logger:     logger,
		service:    service,
		guard:      guard,
		respond:    respond,
		validate:   shared.NewValidator(),
		refreshTTL: refreshTTL,
		secure:     secure,
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.With(h.guard.RequireRefresh).Post("/refresh", h.handleRefresh)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginResponse struct {
	AccessToken string       `json:"accessToken"`
	User        userResponse `json:"user"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	if err := h.validate.Struct(form); err != nil {
		h.respond.Error(w, r, httpx.Validation(shared.FieldErrors(err)))
		return
	}

	identity, pair, err := h.service.Login(r.Context(), form.Email, form.Password)
	if err != nil {
		h.respond.Error(w, r, httpx.Unauthorized("Invalid credentials"))
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	h.respond.JSON(w, http.StatusOK, loginResponse{
		AccessToken: pair.AccessToken,
		User: userResponse{
			ID:    identity.UserID.String(),
			Email: identity.Email,
			Role:  identity.Role,
		},
	})
}

// handleRefresh runs behind RequireRefresh; the verified identity is already
// in context when it executes.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		h.respond.Error(w, r, httpx.Unauthorized("Invalid refresh token"))
		return
	}

	pair, err := h.service.Refresh(r.Context(), identity)
	if err != nil {
		h.clearRefreshCookie(w)
		h.respond.Error(w, r, httpx.Unauthorized("Invalid refresh token"))
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	h.respond.JSON(w, http.StatusOK, loginResponse{
		AccessToken: pair.AccessToken,
		User: userResponse{
			ID:    identity.UserID.String(),
			Email: identity.Email,
			Role:  identity.Role,
		},
	})
}

// handleLogout clears the refresh cookie. Access tokens stay valid until
// natural expiry; there is no server-side revocation in this design.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.clearRefreshCookie(w)
	h.respond.NoContent(w)
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     "/auth",
		MaxAge:   int(h.refreshTTL / time.Second),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
}
