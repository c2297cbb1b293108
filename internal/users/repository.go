package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keystone-id/keystone/internal/platform/db"
	"github.com/keystone-id/keystone/internal/platform/httpx"
	"github.com/keystone-id/keystone/internal/shared"
)

const uniqueViolationCode = "23505"

// Repository defines persistence operations for user accounts.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]User, int, error)
	Get(ctx context.Context, id uuid.UUID) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, user User) (User, error)
	Update(ctx context.Context, user User) (User, error)
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
	Purge(ctx context.Context, before time.Time) (int64, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const userColumns = "id, email, password_hash, role, created_at, updated_at, deleted_at"

// List returns non-deleted users matching the filters in creation order.
func (r *repository) List(ctx context.Context, filters ListFilters) ([]User, int, error) {
	where := ` WHERE deleted_at IS NULL`
	args := []any{}
	argCount := 0

	if filters.Email != "" {
		argCount++
		where += ` AND email ILIKE $` + strconv.Itoa(argCount)
		args = append(args, "%"+escapeLike(filters.Email)+"%")
	}
	if filters.Role != "" {
		argCount++
		where += ` AND role = $` + strconv.Itoa(argCount)
		args = append(args, filters.Role)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("users: count: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users` + where + ` ORDER BY created_at, id`
	if filters.Limit > 0 {
		paging := shared.NewPagination(filters.Page, filters.Limit, total)

		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, paging.PerPage)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, paging.Offset())
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	var result []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt); err != nil {
			return nil, 0, fmt.Errorf("users: scan: %w", err)
		}
		result = append(result, u)
	}
	return result, total, rows.Err()
}

// Get fetches a non-deleted user by id. Soft-deleted rows are reported as not
// found, indistinguishable from absent rows.
func (r *repository) Get(ctx context.Context, id uuid.UUID) (User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`
	var u User
	err := r.db.QueryRow(ctx, query, id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, httpx.NotFound("User with ID %s not found", id)
		}
		return User{}, fmt.Errorf("users: get: %w", err)
	}
	return u, nil
}

// GetByEmail fetches a non-deleted user by exact email.
func (r *repository) GetByEmail(ctx context.Context, email string) (User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND deleted_at IS NULL`
	var u User
	err := r.db.QueryRow(ctx, query, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, httpx.NotFound("User not found")
		}
		return User{}, fmt.Errorf("users: get by email: %w", err)
	}
	return u, nil
}

// Create inserts a new user. A unique-index violation on email maps to a
// conflict fault.
func (r *repository) Create(ctx context.Context, user User) (User, error) {
	query := `INSERT INTO users (id, email, password_hash, role, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Exec(ctx, query, user.ID, user.Email, user.PasswordHash, user.Role, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, httpx.Conflict("Email already exists")
		}
		return User{}, fmt.Errorf("users: create: %w", err)
	}
	return user, nil
}

// Update overwrites the mutable columns of a non-deleted user. The write and
// the read-back happen in one transaction so the returned row reflects exactly
// what was stored.
func (r *repository) Update(ctx context.Context, user User) (User, error) {
	query := `UPDATE users SET email = $1, password_hash = $2, role = $3, updated_at = $4
	          WHERE id = $5 AND deleted_at IS NULL`
	var updated User
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, user.Email, user.PasswordHash, user.Role, user.UpdatedAt, user.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return httpx.Conflict("Email already exists")
			}
			return fmt.Errorf("users: update: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return httpx.NotFound("User with ID %s not found", user.ID)
		}
		row := tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, user.ID)
		return row.Scan(&updated.ID, &updated.Email, &updated.PasswordHash, &updated.Role, &updated.CreatedAt, &updated.UpdatedAt, &updated.DeletedAt)
	})
	if err != nil {
		return User{}, err
	}
	return updated, nil
}

// SoftDelete stamps the deletion timestamp without removing the row.
func (r *repository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE users SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`
	tag, err := r.db.Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("users: soft delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.NotFound("User with ID %s not found", id)
	}
	return nil
}

// Purge physically removes rows soft-deleted before the cutoff. Only the
// retention job calls this; no HTTP surface exposes a hard delete.
func (r *repository) Purge(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE deleted_at IS NOT NULL AND deleted_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("users: purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

// likeEscaper neutralizes pattern metacharacters so a filter value matches
// literally inside the ILIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
