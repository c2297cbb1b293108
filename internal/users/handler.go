package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/keystone-id/keystone/internal/platform/httpx"
	"github.com/keystone-id/keystone/internal/shared"
)

// maxPageSize caps how many rows one listing request may ask for.
const maxPageSize = 100

// Guard exposes the route protection middleware the handler mounts.
type Guard interface {
	RequireAccess(http.Handler) http.Handler
	RequireRole(roles ...string) func(http.Handler) http.Handler
}

// Handler manages user management endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	respond  *httpx.Responder
	guard    Guard
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, respond *httpx.Responder, guard Guard) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		respond:  respond,
		guard:    guard,
		validate: shared.NewValidator(),
	}
}

// MountRoutes registers user routes. Every route requires a valid access
// token; listing and deletion additionally require the admin role.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAccess)
		r.With(h.guard.RequireRole(RoleAdmin)).Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.With(h.guard.RequireRole(RoleAdmin)).Delete("/{id}", h.delete)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	paging := shared.NewPagination(intQuery(q.Get("page"), 1), intQuery(q.Get("limit"), 20), 0)
	if paging.PerPage > maxPageSize {
		paging.PerPage = maxPageSize
	}
	filters := ListFilters{
		Email: q.Get("email"),
		Role:  q.Get("role"),
		Page:  paging.Page,
		Limit: paging.PerPage,
	}

	result, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.respond.JSON(w, http.StatusOK, result)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.respond.JSON(w, http.StatusOK, user)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var form CreateUserForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	if err := h.validate.Struct(form); err != nil {
		h.respond.Error(w, r, httpx.Validation(shared.FieldErrors(err)))
		return
	}

	user, err := h.service.Create(r.Context(), form)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.respond.JSON(w, http.StatusCreated, user)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	var form UpdateUserForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	if err := h.validate.Struct(form); err != nil {
		h.respond.Error(w, r, httpx.Validation(shared.FieldErrors(err)))
		return
	}

	user, err := h.service.Update(r.Context(), id, form)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.respond.JSON(w, http.StatusOK, user)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.respond.NoContent(w)
}

func parseID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, httpx.Validation([]httpx.FieldError{{Field: "id", Message: "Invalid UUID"}})
	}
	return id, nil
}

func intQuery(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
