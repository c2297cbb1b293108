// Package token issues and verifies signed, time-limited bearer tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind tags a token as either access or refresh. The two kinds are signed
// with distinct secrets and are never interchangeable.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Sentinel errors. ErrTokenExpired wraps ErrInvalidToken so callers that only
// care about validity can match on ErrInvalidToken alone; the distinction
// exists for logging.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
)

// Identity is the authenticated principal carried inside a token.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

// Claims is the JWT payload.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Kind  string `json:"kind"`
	jwt.RegisteredClaims
}

// Service signs and verifies tokens. Issue is a pure function of identity,
// clock and secret; no state is kept server-side.
type Service struct {
	secrets map[Kind][]byte
	ttls    map[Kind]time.Duration
	issuer  string
	nowFunc func() time.Time
}

// NewService constructs a Service with distinct secrets per kind.
func NewService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		secrets: map[Kind][]byte{
			KindAccess:  []byte(accessSecret),
			KindRefresh: []byte(refreshSecret),
		},
		ttls: map[Kind]time.Duration{
			KindAccess:  accessTTL,
			KindRefresh: refreshTTL,
		},
		issuer:  "keystone",
		nowFunc: time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.nowFunc = now
	return s
}

// TTL returns the configured lifetime for a kind.
func (s *Service) TTL(kind Kind) time.Duration {
	return s.ttls[kind]
}

// Issue signs a token of the given kind for the identity.
func (s *Service) Issue(identity Identity, kind Kind) (string, error) {
	secret, ok := s.secrets[kind]
	if !ok {
		return "", fmt.Errorf("token: unknown kind %q", kind)
	}
	now := s.nowFunc()
	claims := Claims{
		Email: identity.Email,
		Role:  identity.Role,
		Kind:  string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttls[kind])),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and kind, returning the embedded identity.
func (s *Service) Verify(tokenString string, kind Kind) (Identity, error) {
	secret, ok := s.secrets[kind]
	if !ok {
		return Identity{}, fmt.Errorf("token: unknown kind %q", kind)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(s.nowFunc),
		jwt.WithExpirationRequired(),
	)
	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, ErrInvalidToken
	}
	if claims.Kind != string(kind) {
		return Identity{}, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: userID, Email: claims.Email, Role: claims.Role}, nil
}
