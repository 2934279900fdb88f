package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"property-platform/access-core/internal/session/domain"
)

const sessionColumns = `id, user_id, access_fingerprint, access_expires_at, refresh_fingerprint, refresh_expires_at,
       device_class, ip, user_agent, created_at, last_activity_at, absolute_expires_at, revoked_at, revoke_reason`

// PostgresRepository stores sessions in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	s, err := scanSession(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// ListActiveByUser returns the user's unrevoked sessions, oldest first with
// ties broken by id so concurrency eviction is deterministic.
func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	q := `SELECT ` + sessionColumns + `
          FROM sessions
          WHERE user_id = $1 AND revoked_at IS NULL
          ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return out, nil
}

// Create persists the session. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	const q = `
        INSERT INTO sessions (id, user_id, access_fingerprint, access_expires_at, refresh_fingerprint, refresh_expires_at,
                              device_class, ip, user_agent, created_at, last_activity_at, absolute_expires_at, revoked_at, revoke_reason)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	deviceClass := s.Client.DeviceClass
	if deviceClass == "" {
		deviceClass = "web"
	}
	if _, err := r.db.ExecContext(ctx, q,
		s.ID,
		s.UserID,
		s.AccessFingerprint,
		s.AccessExpiresAt,
		s.RefreshFingerprint,
		s.RefreshExpiresAt,
		deviceClass,
		s.Client.IP,
		s.Client.UserAgent,
		s.CreatedAt,
		s.LastActivityAt,
		s.AbsoluteExpiresAt,
		nullableTime(s.RevokedAt),
		sql.NullString{String: string(s.RevokeReason), Valid: s.RevokeReason != ""},
	); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Revoke marks the session revoked. Already-revoked sessions are left alone
// so the first revocation's timestamp and reason stick.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, at time.Time, reason domain.RevokeReason) error {
	const q = `
        UPDATE sessions
        SET revoked_at = $2, revoke_reason = $3
        WHERE id = $1 AND revoked_at IS NULL`

	if _, err := r.db.ExecContext(ctx, q, id, at, string(reason)); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// UpdateLastActivity records activity on the session at the given time.
func (r *PostgresRepository) UpdateLastActivity(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE sessions SET last_activity_at = $2 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, q, id, at); err != nil {
		return fmt.Errorf("failed to update session activity: %w", err)
	}
	return nil
}

// UpdateAccessToken swaps the access-token fingerprint bound to the session.
// Revoked sessions are left alone.
func (r *PostgresRepository) UpdateAccessToken(ctx context.Context, id, fingerprint string, expiresAt time.Time) error {
	const q = `
        UPDATE sessions
        SET access_fingerprint = $2, access_expires_at = $3
        WHERE id = $1 AND revoked_at IS NULL`

	if _, err := r.db.ExecContext(ctx, q, id, fingerprint, expiresAt); err != nil {
		return fmt.Errorf("failed to update session access token: %w", err)
	}
	return nil
}

// DeleteRevokedBefore removes revoked sessions older than cutoff.
func (r *PostgresRepository) DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM sessions WHERE revoked_at IS NOT NULL AND revoked_at < $1`

	res, err := r.db.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete revoked sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted sessions: %w", err)
	}
	return n, nil
}

// DeleteAbsoluteExpiredBefore removes unrevoked sessions whose absolute
// expiry passed before cutoff. Their tokens are already unusable: access
// tokens outlive their session by at most the access TTL, which the caller
// covers with its grace period, and any refresh attempt fails the session
// lookup.
func (r *PostgresRepository) DeleteAbsoluteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM sessions WHERE revoked_at IS NULL AND absolute_expires_at < $1`

	res, err := r.db.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted sessions: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		s         domain.Session
		revokedAt sql.NullTime
		reason    sql.NullString
	)
	if err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.AccessFingerprint,
		&s.AccessExpiresAt,
		&s.RefreshFingerprint,
		&s.RefreshExpiresAt,
		&s.Client.DeviceClass,
		&s.Client.IP,
		&s.Client.UserAgent,
		&s.CreatedAt,
		&s.LastActivityAt,
		&s.AbsoluteExpiresAt,
		&revokedAt,
		&reason,
	); err != nil {
		return nil, err
	}
	s.RevokedAt = timePtr(revokedAt)
	if reason.Valid {
		s.RevokeReason = domain.RevokeReason(reason.String)
	}
	return &s, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}
