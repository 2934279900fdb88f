package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"property-platform/access-core/internal/authz"
	"property-platform/access-core/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, password_hash, role, active, created_at, updated_at`

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail returns the user with the given email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// GetRole returns the user's current role, or "" if the user does not exist.
func (r *PostgresRepository) GetRole(ctx context.Context, userID string) (authz.Role, error) {
	var role string
	err := r.db.QueryRowContext(ctx,
		`SELECT role FROM users WHERE id = $1`, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("getting user role: %w", err)
	}
	return authz.Role(role), nil
}

// Create persists the user to the database. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, role, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.PasswordHash, string(u.Role), u.Active, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// UpdateRole sets the user's role. The caller owns cache invalidation.
func (r *PostgresRepository) UpdateRole(ctx context.Context, userID string, role authz.Role) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`,
		userID, string(role), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("updating user role: %w", err)
	}
	return nil
}

// UpdatePasswordHash replaces the user's password hash.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		userID, passwordHash, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("updating password hash: %w", err)
	}
	return nil
}

// SetActive flips the user's active flag.
func (r *PostgresRepository) SetActive(ctx context.Context, userID string, active bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET active = $2, updated_at = $3 WHERE id = $1`,
		userID, active, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("setting user active: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	u.Role = authz.Role(role)
	return &u, nil
}
