package users

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/keystone-id/keystone/internal/platform/httpx"
)

// Enqueuer submits background work triggered by user mutations.
type Enqueuer interface {
	EnqueueWelcomeEmail(ctx context.Context, email string) error
}

// Service handles user business logic: hashing on write, soft delete on
// removal, projection of the listing.
type Service struct {
	logger     *slog.Logger
	repo       Repository
	enqueuer   Enqueuer
	bcryptCost int
	nowFunc    func() time.Time
}

// NewService builds a Service instance. enqueuer may be nil when no job
// backend is configured.
func NewService(logger *slog.Logger, repo Repository, enqueuer Enqueuer, bcryptCost int) *Service {
	if bcryptCost <= 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{logger: logger, repo: repo, enqueuer: enqueuer, bcryptCost: bcryptCost, nowFunc: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.nowFunc = now
	return s
}

// List returns users matching the filters plus the unpaged total.
func (s *Service) List(ctx context.Context, filters ListFilters) (ListResult, error) {
	data, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return ListResult{}, err
	}
	if data == nil {
		data = []User{}
	}
	return ListResult{Data: data, Total: total, Page: filters.Page, Limit: filters.Limit}, nil
}

// Get fetches a single user by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (User, error) {
	return s.repo.Get(ctx, id)
}

// Create hashes the password and stores a new user. A taken email is
// reported before the insert is attempted; the unique index backstops the
// race between the check and the write.
func (s *Service) Create(ctx context.Context, form CreateUserForm) (User, error) {
	if _, err := s.repo.GetByEmail(ctx, form.Email); err == nil {
		return User{}, httpx.Conflict("Email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), s.bcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}

	now := s.nowFunc().UTC()
	user := User{
		ID:           uuid.New(),
		Email:        form.Email,
		PasswordHash: string(hash),
		Role:         form.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return User{}, err
	}

	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueWelcomeEmail(ctx, created.Email); err != nil {
			// Mail delivery is best effort; the account exists either way.
			s.logger.Warn("enqueue welcome email",
				slog.String("email", created.Email),
				slog.Any("error", err),
			)
		}
	}
	return created, nil
}

// EnsureAdmin creates the administrator account unless one already holds the
// email. It reports whether a new account was created.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (User, bool, error) {
	if existing, err := s.repo.GetByEmail(ctx, email); err == nil {
		return existing, false, nil
	}
	user, err := s.Create(ctx, CreateUserForm{Email: email, Password: password, Role: RoleAdmin})
	if err != nil {
		return User{}, false, err
	}
	return user, true, nil
}

// Update applies the present fields, re-hashing a supplied password.
func (s *Service) Update(ctx context.Context, id uuid.UUID, form UpdateUserForm) (User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}

	if form.Email != nil {
		user.Email = *form.Email
	}
	if form.Role != nil {
		user.Role = *form.Role
	}
	if form.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*form.Password), s.bcryptCost)
		if err != nil {
			return User{}, fmt.Errorf("users: hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}
	user.UpdatedAt = s.nowFunc().UTC()

	return s.repo.Update(ctx, user)
}

// Delete marks the user deleted. Callers cannot observe a difference from a
// hard delete; the row is retained until the retention job purges it.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.SoftDelete(ctx, id, s.nowFunc().UTC())
}
