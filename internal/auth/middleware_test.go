package auth

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keystone-id/keystone/internal/platform/httpx"
	"github.com/keystone-id/keystone/internal/shared"
	"github.com/keystone-id/keystone/internal/token"
)

func newTestGuard(t *testing.T) (*Guard, *token.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := token.NewService("access-secret-for-tests", "refresh-secret-for-tests", 15*time.Minute, 168*time.Hour)
	return NewGuard(tokens, httpx.NewResponder(logger, false), logger), tokens
}

func echoIdentity(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := shared.IdentityFromContext(r.Context())
		require.True(t, ok, "handler reached without identity in context")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"email": identity.Email, "role": identity.Role})
	})
}

func requestMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env httpx.Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env.Message
}

func TestRequireAccessMissingHeader(t *testing.T) {
	guard, _ := newTestGuard(t)
	rec := httptest.NewRecorder()

	guard.RequireAccess(echoIdentity(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "No token provided", requestMessage(t, rec))
}

func TestRequireAccessMalformedToken(t *testing.T) {
	guard, _ := newTestGuard(t)

	for _, header := range []string{
		"Bearer not.a.jwt",
		"Bearer ",
		"Basic dXNlcjpwYXNz",
	} {
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()

		guard.RequireAccess(echoIdentity(t)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestRequireAccessExpiredToken(t *testing.T) {
	guard, tokens := newTestGuard(t)

	past := time.Now().Add(-time.Hour)
	signed, err := tokens.WithClock(func() time.Time { return past }).Issue(token.Identity{
		UserID: uuid.New(), Email: "a@b.com", Role: "user",
	}, token.KindAccess)
	require.NoError(t, err)
	tokens.WithClock(time.Now)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()

	guard.RequireAccess(echoIdentity(t)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", requestMessage(t, rec))
}

func TestRequireAccessAttachesIdentity(t *testing.T) {
	guard, tokens := newTestGuard(t)

	signed, err := tokens.Issue(token.Identity{UserID: uuid.New(), Email: "a@b.com", Role: "admin"}, token.KindAccess)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()

	guard.RequireAccess(echoIdentity(t)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "a@b.com", body["email"])
	assert.Equal(t, "admin", body["role"])
}

func TestRequireAccessRejectsRefreshToken(t *testing.T) {
	guard, tokens := newTestGuard(t)

	signed, err := tokens.Issue(token.Identity{UserID: uuid.New(), Email: "a@b.com", Role: "user"}, token.KindRefresh)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()

	guard.RequireAccess(echoIdentity(t)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRefreshCookie(t *testing.T) {
	guard, tokens := newTestGuard(t)
	identity := token.Identity{UserID: uuid.New(), Email: "a@b.com", Role: "user"}

	t.Run("missing cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		guard.RequireRefresh(echoIdentity(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/refresh", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "No refresh token provided", requestMessage(t, rec))
	})

	t.Run("access token in refresh cookie", func(t *testing.T) {
		signed, err := tokens.Issue(identity, token.KindAccess)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: signed})
		rec := httptest.NewRecorder()

		guard.RequireRefresh(echoIdentity(t)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid refresh token", requestMessage(t, rec))
	})

	t.Run("valid refresh cookie", func(t *testing.T) {
		signed, err := tokens.Issue(identity, token.KindRefresh)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: signed})
		rec := httptest.NewRecorder()

		guard.RequireRefresh(echoIdentity(t)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	guard, _ := newTestGuard(t)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	withIdentity := func(role string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		ctx := shared.ContextWithIdentity(req.Context(), token.Identity{UserID: uuid.New(), Email: "a@b.com", Role: role})
		return req.WithContext(ctx)
	}

	t.Run("allowed role passes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		guard.RequireRole("admin")(ok).ServeHTTP(rec, withIdentity("admin"))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("disallowed role forbidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		guard.RequireRole("admin")(ok).ServeHTTP(rec, withIdentity("user"))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Insufficient role", requestMessage(t, rec))
	})

	t.Run("no identity fails closed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		guard.RequireRole("admin")(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
