package auth

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/keystone-id/keystone/internal/token"
)

// Service wraps authentication business rules: credential checks and token
// pair issuance. No session state is kept server-side.
type Service struct {
	repo   Repository
	tokens *token.Service
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *token.Service) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Login validates email/password credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (token.Identity, TokenPair, error) {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return token.Identity{}, TokenPair{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return token.Identity{}, TokenPair{}, ErrInvalidCredentials
	}

	identity := token.Identity{UserID: account.ID, Email: account.Email, Role: account.Role}
	pair, err := s.issuePair(identity)
	if err != nil {
		return token.Identity{}, TokenPair{}, err
	}
	return identity, pair, nil
}

// Refresh rotates the pair for an identity already verified by the refresh
// guard. The account is re-read so a deleted user cannot keep refreshing.
func (s *Service) Refresh(ctx context.Context, identity token.Identity) (TokenPair, error) {
	account, err := s.repo.FindByEmail(ctx, identity.Email)
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	return s.issuePair(token.Identity{UserID: account.ID, Email: account.Email, Role: account.Role})
}

func (s *Service) issuePair(identity token.Identity) (TokenPair, error) {
	access, err := s.tokens.Issue(identity, token.KindAccess)
	if err != nil {
		return TokenPair{}, fmt.Errorf("auth: issue access token: %w", err)
	}
	refresh, err := s.tokens.Issue(identity, token.KindRefresh)
	if err != nil {
		return TokenPair{}, fmt.Errorf("auth: issue refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
