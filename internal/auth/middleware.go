package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/keystone-id/keystone/internal/platform/httpx"
	"github.com/keystone-id/keystone/internal/shared"
	"github.com/keystone-id/keystone/internal/token"
)

// RefreshCookieName is the HTTP-only cookie carrying the refresh token.
const RefreshCookieName = "refresh_token"

// Guard gates routes on token verification. Absent, malformed and expired
// tokens all surface as the same 401; the distinction is logged only.
type Guard struct {
	tokens  *token.Service
	respond *httpx.Responder
	logger  *slog.Logger
}

// NewGuard constructs a Guard.
func NewGuard(tokens *token.Service, respond *httpx.Responder, logger *slog.Logger) *Guard {
	return &Guard{tokens: tokens, respond: respond, logger: logger}
}

// RequireAccess extracts a bearer token from the Authorization header,
// verifies it as an access token and attaches the identity to the request
// context. That attachment is the only side effect.
func (g *Guard) RequireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			g.respond.Error(w, r, httpx.Unauthorized("No token provided"))
			return
		}
		identity, err := g.tokens.Verify(raw, token.KindAccess)
		if err != nil {
			g.logFailure(r, "access", err)
			g.respond.Error(w, r, httpx.Unauthorized("Invalid token"))
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), identity)))
	})
}

// RequireRefresh reads the refresh token from its cookie and verifies it
// with the same pass/fail contract as RequireAccess.
func (g *Guard) RequireRefresh(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(RefreshCookieName)
		if err != nil || cookie.Value == "" {
			g.respond.Error(w, r, httpx.Unauthorized("No refresh token provided"))
			return
		}
		identity, err := g.tokens.Verify(cookie.Value, token.KindRefresh)
		if err != nil {
			g.logFailure(r, "refresh", err)
			g.respond.Error(w, r, httpx.Unauthorized("Invalid refresh token"))
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), identity)))
	})
}

// RequireRole layers role authorization over an already attached identity.
// It fails closed: no identity or a role outside the allow-list is rejected.
func (g *Guard) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := shared.IdentityFromContext(r.Context())
			if !ok {
				g.respond.Error(w, r, httpx.Forbidden("Insufficient role"))
				return
			}
			for _, role := range roles {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			g.respond.Error(w, r, httpx.Forbidden("Insufficient role"))
		})
	}
}

func (g *Guard) logFailure(r *http.Request, kind string, err error) {
	if g.logger == nil {
		return
	}
	reason := "invalid"
	if errors.Is(err, token.ErrTokenExpired) {
		reason = "expired"
	}
	g.logger.Warn("token verification failed",
		slog.String("kind", kind),
		slog.String("reason", reason),
		slog.String("path", r.URL.Path),
	)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
