// Package client is a typed Go client for the Keystone API. Idempotent reads
// are retried with exponential backoff on transient failures; a 401 triggers
// one refresh-token exchange before the call is surfaced as failed.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/keystone-id/keystone/internal/auth"
	"github.com/keystone-id/keystone/internal/users"
)

// APIError is the uniform client-side error for non-2xx responses.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAuthExpiredHook registers the callback invoked after a failed refresh,
// typically a redirect to the login entry point.
func WithAuthExpiredHook(hook func()) Option {
	return func(c *Client) { c.onAuthExpired = hook }
}

// WithMaxRetries bounds the backoff attempts for idempotent reads.
func WithMaxRetries(n uint64) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBackoffBase sets the first backoff delay.
func WithBackoffBase(d time.Duration) Option {
	return func(c *Client) { c.backoffBase = d }
}

// Client wraps each server endpoint in a typed call.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	onAuthExpired func()
	maxRetries    uint64
	backoffBase   time.Duration

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// New constructs a Client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		maxRetries:  3,
		backoffBase: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
}

// Login authenticates and stores the issued token pair.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/login", nil, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	var out loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("client: decode login response: %w", err)
	}

	c.mu.Lock()
	c.accessToken = out.AccessToken
	c.refreshToken = refreshCookie(resp)
	c.mu.Unlock()
	return nil
}

// Refresh exchanges the stored refresh token for a new pair. On failure the
// stored credentials are cleared and the auth-expired hook fires.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.refreshToken
	c.mu.Unlock()
	if refresh == "" {
		c.expireAuth()
		return &APIError{Status: http.StatusUnauthorized, Message: "No refresh token provided"}
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/auth/refresh", nil, nil)
	if err != nil {
		return err
	}
	req.AddCookie(&http.Cookie{Name: auth.RefreshCookieName, Value: refresh})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		c.expireAuth()
		return apiError(resp)
	}

	var out loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("client: decode refresh response: %w", err)
	}

	c.mu.Lock()
	c.accessToken = out.AccessToken
	if rc := refreshCookie(resp); rc != "" {
		c.refreshToken = rc
	}
	c.mu.Unlock()
	return nil
}

// Logout clears credentials locally and server-side cookie state.
func (c *Client) Logout(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/logout", nil, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer drain(resp)

	c.mu.Lock()
	c.accessToken = ""
	c.refreshToken = ""
	c.mu.Unlock()
	return nil
}

// ListOptions narrows and pages ListUsers.
type ListOptions struct {
	Email string
	Role  string
	Page  int
	Limit int
}

// ListUsers fetches the paginated user listing.
func (c *Client) ListUsers(ctx context.Context, opts ListOptions) (users.ListResult, error) {
	query := url.Values{}
	if opts.Email != "" {
		query.Set("email", opts.Email)
	}
	if opts.Role != "" {
		query.Set("role", opts.Role)
	}
	if opts.Page > 0 {
		query.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}

	var result users.ListResult
	err := c.doRetry(ctx, http.MethodGet, "/users", query, nil, &result)
	return result, err
}

// GetUser fetches a single user.
func (c *Client) GetUser(ctx context.Context, id uuid.UUID) (users.User, error) {
	var user users.User
	err := c.doRetry(ctx, http.MethodGet, "/users/"+id.String(), nil, nil, &user)
	return user, err
}

// CreateUser creates a user. Writes are never retried.
func (c *Client) CreateUser(ctx context.Context, form users.CreateUserForm) (users.User, error) {
	var user users.User
	err := c.do(ctx, http.MethodPost, "/users", nil, form, &user)
	return user, err
}

// UpdateUser updates the present fields of a user.
func (c *Client) UpdateUser(ctx context.Context, id uuid.UUID, form users.UpdateUserForm) (users.User, error) {
	var user users.User
	err := c.do(ctx, http.MethodPut, "/users/"+id.String(), nil, form, &user)
	return user, err
}

// DeleteUser removes a user.
func (c *Client) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/users/"+id.String(), nil, nil, nil)
}

// doRetry wraps do with bounded exponential backoff. Client errors (4xx)
// indicate a request defect and are never retried.
func (c *Client) doRetry(ctx context.Context, method, path string, query url.Values, body, out any) error {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoffBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.do(ctx, method, path, query, body, out)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			return err
		}
		return retry.RetryableError(err)
	})
}

// do performs one call. A 401 triggers a single refresh exchange followed by
// exactly one replay of the original request.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		if err := c.Refresh(ctx); err != nil {
			return &APIError{Status: http.StatusUnauthorized, Message: "Authentication expired"}
		}
		resp, err = c.send(ctx, method, path, query, body)
		if err != nil {
			return err
		}
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	c.mu.Unlock()
	return c.httpClient.Do(req)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("client: marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) expireAuth() {
	c.mu.Lock()
	c.accessToken = ""
	c.refreshToken = ""
	hook := c.onAuthExpired
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// HasCredentials reports whether the client currently holds tokens.
func (c *Client) HasCredentials() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken != "" || c.refreshToken != ""
}

func apiError(resp *http.Response) error {
	var envelope struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&envelope)
	if envelope.Message == "" {
		envelope.Message = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: envelope.Message}
}

func refreshCookie(resp *http.Response) string {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == auth.RefreshCookieName {
			return cookie.Value
		}
	}
	return ""
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
