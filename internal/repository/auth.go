// Package repository provides the PostgreSQL persistence behind the
// reference DevTrack backend.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/atinyakov/devtrack/internal/models"
)

// Postgres error codes the repositories translate.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// translate maps driver errors onto the models sentinels.
func translate(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%w: %s", models.ErrConflict, pqErr.Constraint)
		case pqForeignKeyViolation:
			return fmt.Errorf("%w: %s", models.ErrNotFound, pqErr.Constraint)
		}
	}
	return err
}

// PostgresAuthRepository stores user accounts.
type PostgresAuthRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAuthRepository creates a PostgresAuthRepository over db.
func NewPostgresAuthRepository(db *sql.DB) *PostgresAuthRepository {
	return &PostgresAuthRepository{DB: db}
}

// UserExists reports whether an account with the given email exists.
func (r *PostgresAuthRepository) UserExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`,
		email,
	).Scan(&exists)
	return exists, err
}

// CreateUser inserts acc and returns it with id and creation time filled.
// A duplicate email or username yields models.ErrConflict.
func (r *PostgresAuthRepository) CreateUser(ctx context.Context, acc models.Account) (models.Account, error) {
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO users (email, username, hashed_password, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_active, created_at
	`, acc.Email, acc.Username, acc.PasswordHash, acc.Role).Scan(&acc.ID, &acc.IsActive, &acc.CreatedAt)
	if err != nil {
		return models.Account{}, fmt.Errorf("create user: %w", translate(err))
	}
	return acc, nil
}

// UserByEmail loads the account for email or returns models.ErrNotFound.
func (r *PostgresAuthRepository) UserByEmail(ctx context.Context, email string) (models.Account, error) {
	var acc models.Account
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, email, username, hashed_password, role, is_active, created_at
		FROM users WHERE email = $1
	`, email).Scan(&acc.ID, &acc.Email, &acc.Username, &acc.PasswordHash, &acc.Role, &acc.IsActive, &acc.CreatedAt)
	if err != nil {
		return models.Account{}, fmt.Errorf("user by email: %w", translate(err))
	}
	return acc, nil
}
