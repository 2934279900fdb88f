package authz

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresCatalog stores the role → permission mapping in role_permissions.
type PostgresCatalog struct {
	db *sql.DB
}

// NewPostgresCatalog returns a Catalog backed by the given db.
func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

// PermissionsForRole returns the permissions granted to role. An unknown role
// returns an empty slice, not an error.
func (c *PostgresCatalog) PermissionsForRole(ctx context.Context, role Role) ([]Permission, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT permission FROM role_permissions WHERE role = $1 ORDER BY permission`,
		string(role),
	)
	if err != nil {
		return nil, fmt.Errorf("listing role permissions: %w", err)
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning role permission: %w", err)
		}
		perms = append(perms, Permission(p))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing role permissions: %w", err)
	}
	return perms, nil
}

// ReplaceRolePermissions replaces the full permission set for role in one
// transaction, so readers never observe a half-written set.
func (c *PostgresCatalog) ReplaceRolePermissions(ctx context.Context, role Role, perms []Permission) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning catalog transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM role_permissions WHERE role = $1`, string(role)); err != nil {
		return fmt.Errorf("clearing role permissions: %w", err)
	}
	for _, p := range perms {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO role_permissions (role, permission) VALUES ($1, $2)`,
			string(role), string(p)); err != nil {
			return fmt.Errorf("inserting role permission: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing catalog transaction: %w", err)
	}
	return nil
}

// PostgresResolver answers ownership lookups from the resource_assignments
// table, which the business-entity services keep in sync.
type PostgresResolver struct {
	db *sql.DB
}

// NewPostgresResolver returns an OwnershipResolver backed by the given db.
func NewPostgresResolver(db *sql.DB) *PostgresResolver {
	return &PostgresResolver{db: db}
}

// Check returns the strongest relation userID holds to the resource, or
// RelationNone when no assignment row exists.
func (r *PostgresResolver) Check(ctx context.Context, userID, resourceType, resourceID string) (Relation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT relation FROM resource_assignments
		 WHERE user_id = $1 AND resource_type = $2 AND resource_id = $3`,
		userID, resourceType, resourceID,
	)
	if err != nil {
		return RelationNone, fmt.Errorf("checking ownership: %w", err)
	}
	defer rows.Close()

	held := make(map[Relation]bool)
	for rows.Next() {
		var rel string
		if err := rows.Scan(&rel); err != nil {
			return RelationNone, fmt.Errorf("scanning ownership relation: %w", err)
		}
		held[Relation(rel)] = true
	}
	if err := rows.Err(); err != nil {
		return RelationNone, fmt.Errorf("checking ownership: %w", err)
	}
	for _, strongest := range relationPrecedence {
		if held[strongest] {
			return strongest, nil
		}
	}
	return RelationNone, nil
}

// Grant records that userID holds relation to the resource. Idempotent.
// Used by seeding and by the surrounding platform when assignments change.
func (r *PostgresResolver) Grant(ctx context.Context, userID, resourceType, resourceID string, relation Relation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO resource_assignments (user_id, resource_type, resource_id, relation)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT DO NOTHING`,
		userID, resourceType, resourceID, string(relation),
	)
	if err != nil {
		return fmt.Errorf("granting ownership: %w", err)
	}
	return nil
}

// Revoke removes the relation row. Missing rows are not an error.
func (r *PostgresResolver) Revoke(ctx context.Context, userID, resourceType, resourceID string, relation Relation) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM resource_assignments
		 WHERE user_id = $1 AND resource_type = $2 AND resource_id = $3 AND relation = $4`,
		userID, resourceType, resourceID, string(relation),
	)
	if err != nil {
		return fmt.Errorf("revoking ownership: %w", err)
	}
	return nil
}
