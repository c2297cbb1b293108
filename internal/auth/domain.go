package auth

import (
	"time"

	"github.com/google/uuid"
)

// Account is the credential-store view of a user: just enough to
// authenticate and mint tokens.
type Account struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// TokenPair bundles a freshly issued access and refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
