package blacklist

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresRepository persists revoked token fingerprints so the in-memory
// store can be rebuilt after a restart.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores one entry. Re-inserting an existing fingerprint is a no-op so
// concurrent revocations of the same token stay idempotent.
func (r *PostgresRepository) Insert(ctx context.Context, e Entry) error {
	const q = `
        INSERT INTO revoked_tokens (fingerprint, token_class, user_id, session_id, reason, revoked_at, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (fingerprint) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, q,
		e.Fingerprint,
		string(e.Class),
		e.UserID,
		e.SessionID,
		string(e.Reason),
		e.RevokedAt,
		e.ExpiresAt,
	); err != nil {
		return fmt.Errorf("failed to insert revoked token: %w", err)
	}
	return nil
}

// ListLive returns every entry whose underlying token has not yet expired.
func (r *PostgresRepository) ListLive(ctx context.Context, now time.Time) ([]Entry, error) {
	const q = `
        SELECT fingerprint, token_class, user_id, session_id, reason, revoked_at, expires_at
        FROM revoked_tokens
        WHERE expires_at > $1`

	rows, err := r.db.QueryContext(ctx, q, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list revoked tokens: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var class, reason string
		if err := rows.Scan(&e.Fingerprint, &class, &e.UserID, &e.SessionID, &reason, &e.RevokedAt, &e.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan revoked token: %w", err)
		}
		e.Class = TokenClass(class)
		e.Reason = Reason(reason)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate revoked tokens: %w", err)
	}
	return entries, nil
}

// DeleteExpired removes entries whose underlying token has expired and
// returns how many rows were deleted.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM revoked_tokens WHERE expires_at <= $1`

	res, err := r.db.ExecContext(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired revoked tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted revoked tokens: %w", err)
	}
	return n, nil
}
