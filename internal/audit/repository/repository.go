package repository

import (
	"context"

	"property-platform/access-core/internal/audit/domain"
)

// Repository stores the append-only audit trail.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.AuditLog, error)
}
