package repository

import (
	"context"

	"property-platform/access-core/internal/authz"
	"property-platform/access-core/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetRole returns the user's current role, or "" if the user does not exist.
	// Satisfies authz.RoleSource for the permission cache.
	GetRole(ctx context.Context, userID string) (authz.Role, error)
	Create(ctx context.Context, u *domain.User) error
	UpdateRole(ctx context.Context, userID string, role authz.Role) error
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
	SetActive(ctx context.Context, userID string, active bool) error
}
