package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"plumbing_backend/platform/apperr"
	"plumbing_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// User is a row of admin_users.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
}

// Repository provides admin user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new auth repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetUserByEmail loads a user by email, case-insensitively.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, roles, created_at
		FROM admin_users WHERE lower(email) = lower($1)
	`, strings.TrimSpace(email)).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Roles, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return User{}, fmt.Errorf("get admin user: %w", err)
	}
	return u, nil
}

// CreateUser inserts an admin user. A duplicate email is a conflict.
func (r *Repository) CreateUser(ctx context.Context, email, passwordHash string, roles []string) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `
		INSERT INTO admin_users (email, password_hash, roles)
		VALUES (lower($1), $2, $3)
		RETURNING id, email, password_hash, roles, created_at
	`, strings.TrimSpace(email), passwordHash, roles).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Roles, &u.CreatedAt)
	if db.IsUniqueViolation(err) {
		return User{}, apperr.Conflict("an admin with this email already exists")
	}
	if err != nil {
		return User{}, fmt.Errorf("create admin user: %w", err)
	}
	return u, nil
}

// SetPassword replaces a user's password hash.
func (r *Repository) SetPassword(ctx context.Context, email, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE admin_users SET password_hash = $2 WHERE lower(email) = lower($1)`,
		strings.TrimSpace(email), passwordHash)
	if err != nil {
		return fmt.Errorf("set admin password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}
