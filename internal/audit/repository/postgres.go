package repository

import (
	"context"
	"database/sql"
	"fmt"

	"property-platform/access-core/internal/audit/domain"
)

// PostgresRepository stores audit logs in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListByUser returns the user's audit events newest first, paginated by limit
// and offset.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.AuditLog, error) {
	const q = `
        SELECT id, user_id, action, target, ip, metadata, created_at
        FROM audit_log
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var out []*domain.AuditLog
	for rows.Next() {
		var (
			a    domain.AuditLog
			uid  sql.NullString
			meta sql.NullString
		)
		if err := rows.Scan(&a.ID, &uid, &a.Action, &a.Target, &a.IP, &meta, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		a.UserID = uid.String
		a.Metadata = meta.String
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}
	return out, nil
}

// Create persists the audit log. The entry must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	const q = `
        INSERT INTO audit_log (id, user_id, action, target, ip, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`

	uid := sql.NullString{String: a.UserID, Valid: a.UserID != ""}
	meta := sql.NullString{String: a.Metadata, Valid: a.Metadata != ""}
	if _, err := r.db.ExecContext(ctx, q, a.ID, uid, a.Action, a.Target, a.IP, meta, a.CreatedAt); err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}
