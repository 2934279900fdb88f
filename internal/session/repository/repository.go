package repository

import (
	"context"
	"time"

	"property-platform/access-core/internal/session/domain"
)

// Repository defines persistence for sessions. Lookups return (nil, nil) for
// missing rows; an error always means a database failure.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// ListActiveByUser returns the user's unrevoked sessions ordered by
	// creation time, oldest first, ties broken by id.
	ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// Revoke marks the session revoked with the given reason. A session that
	// is already revoked keeps its original timestamp and reason.
	Revoke(ctx context.Context, id string, at time.Time, reason domain.RevokeReason) error
	UpdateLastActivity(ctx context.Context, id string, at time.Time) error
	// UpdateAccessToken swaps the access-token fingerprint recorded for the
	// session after a refresh.
	UpdateAccessToken(ctx context.Context, id, fingerprint string, expiresAt time.Time) error
	// DeleteRevokedBefore removes revoked sessions whose revocation is older
	// than cutoff and returns how many rows were deleted.
	DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// DeleteAbsoluteExpiredBefore removes unrevoked sessions whose absolute
	// expiry is older than cutoff and returns how many rows were deleted.
	DeleteAbsoluteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
