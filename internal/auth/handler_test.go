package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/keystone-id/keystone/internal/platform/httpx"
	"github.com/keystone-id/keystone/internal/token"
)

type stubAccountRepo struct {
	accounts map[string]*Account
}

func (s *stubAccountRepo) FindByEmail(ctx context.Context, email string) (*Account, error) {
	acc, ok := s.accounts[email]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return acc, nil
}

func newAuthServer(t *testing.T) (*httptest.Server, *stubAccountRepo, *token.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	respond := httpx.NewResponder(logger, false)
	tokens := token.NewService("access-secret-for-tests", "refresh-secret-for-tests", 15*time.Minute, 168*time.Hour)

	hash, err := bcrypt.GenerateFromPassword([]byte("Passw0rd"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &stubAccountRepo{accounts: map[string]*Account{
		"known@test.com": {
			ID:           uuid.New(),
			Email:        "known@test.com",
			PasswordHash: string(hash),
			Role:         "user",
			CreatedAt:    time.Now().UTC(),
		},
	}}

	guard := NewGuard(tokens, respond, logger)
	handler := NewHandler(logger, NewService(repo, tokens), guard, respond, 168*time.Hour, false)

	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, repo, tokens
}

func refreshCookieFrom(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == RefreshCookieName {
			return c
		}
	}
	t.Fatal("no refresh cookie set")
	return nil
}

func login(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/auth/login", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestLoginIssuesTokenPair(t *testing.T) {
	srv, _, tokens := newAuthServer(t)

	resp := login(t, srv, `{"email":"known@test.com","password":"Passw0rd"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		AccessToken string `json:"accessToken"`
		User        struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	identity, err := tokens.Verify(body.AccessToken, token.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "known@test.com", identity.Email)
	assert.Equal(t, "known@test.com", body.User.Email)
	assert.Equal(t, "user", body.User.Role)

	cookie := refreshCookieFrom(t, resp)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/auth", cookie.Path)
	assert.Positive(t, cookie.MaxAge)

	_, err = tokens.Verify(cookie.Value, token.KindRefresh)
	assert.NoError(t, err)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	srv, _, _ := newAuthServer(t)

	cases := map[string]string{
		"wrong password":  `{"email":"known@test.com","password":"WrongPw99"}`,
		"unknown account": `{"email":"nobody@test.com","password":"Passw0rd"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := login(t, srv, body)
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			var env httpx.Envelope
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
			// The same message regardless of failure cause.
			assert.Equal(t, "Invalid credentials", env.Message)
		})
	}
}

// A payload that fails schema validation is a malformed request, not a
// credential failure.
func TestLoginValidatesForm(t *testing.T) {
	srv, _, _ := newAuthServer(t)

	resp := login(t, srv, `{"email":"not-an-email","password":"short"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var env httpx.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, "Validation failed", env.Message)
	require.Len(t, env.Errors, 2)

	fields := []string{env.Errors[0].Field, env.Errors[1].Field}
	assert.ElementsMatch(t, []string{"email", "password"}, fields)
}

func TestRefreshRotatesPair(t *testing.T) {
	srv, _, tokens := newAuthServer(t)

	loginResp := login(t, srv, `{"email":"known@test.com","password":"Passw0rd"}`)
	require.Equal(t, http.StatusOK, loginResp.StatusCode)
	cookie := refreshCookieFrom(t, loginResp)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/auth/refresh", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	_, err = tokens.Verify(body.AccessToken, token.KindAccess)
	assert.NoError(t, err)

	rotated := refreshCookieFrom(t, resp)
	_, err = tokens.Verify(rotated.Value, token.KindRefresh)
	assert.NoError(t, err)
}

func TestRefreshWithoutCookie(t *testing.T) {
	srv, _, _ := newAuthServer(t)

	resp, err := http.Post(srv.URL+"/auth/refresh", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var env httpx.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, "No refresh token provided", env.Message)
}

func TestRefreshAfterAccountRemoval(t *testing.T) {
	srv, repo, _ := newAuthServer(t)

	loginResp := login(t, srv, `{"email":"known@test.com","password":"Passw0rd"}`)
	require.Equal(t, http.StatusOK, loginResp.StatusCode)
	cookie := refreshCookieFrom(t, loginResp)

	delete(repo.accounts, "known@test.com")

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/auth/refresh", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	cleared := refreshCookieFrom(t, resp)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)
}

func TestLogoutClearsCookie(t *testing.T) {
	srv, _, _ := newAuthServer(t)

	resp, err := http.Post(srv.URL+"/auth/logout", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	cleared := refreshCookieFrom(t, resp)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)
	assert.True(t, cleared.HttpOnly)
}
