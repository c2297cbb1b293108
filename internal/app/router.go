package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/keystone-id/keystone/internal/auth"
	"github.com/keystone-id/keystone/internal/health"
	"github.com/keystone-id/keystone/internal/platform/httpx"
	"github.com/keystone-id/keystone/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	Responder     *httpx.Responder
	AuthHandler   *auth.Handler
	UsersHandler  *users.Handler
	HealthHandler *health.Handler
	LimitCounter  httprate.LimitCounter
}

// NewRouter constructs the chi.Router with Keystone defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:       params.Logger,
		Config:       params.Config,
		Responder:    params.Responder,
		LimitCounter: params.LimitCounter,
	}) {
		r.Use(mw)
	}

	r.Get("/health", params.HealthHandler.Check)
	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/users", params.UsersHandler.MountRoutes)

	return r
}
