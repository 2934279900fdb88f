package authz

import (
	"context"
	"sync"
)

// Catalog is the persistent role → permission mapping. Roles hold permissions
// as data so an operator can tighten or extend a role without a deploy.
type Catalog interface {
	// PermissionsForRole returns the permissions granted to role. An unknown
	// role returns an empty slice, not an error.
	PermissionsForRole(ctx context.Context, role Role) ([]Permission, error)
	// ReplaceRolePermissions replaces the full permission set for role.
	ReplaceRolePermissions(ctx context.Context, role Role, perms []Permission) error
}

// MemoryCatalog is an in-memory Catalog for tests and seeding.
type MemoryCatalog struct {
	mu    sync.RWMutex
	perms map[Role][]Permission
}

// NewMemoryCatalog returns a MemoryCatalog preloaded with the given mapping.
// Pass Defaults() for the baseline catalog.
func NewMemoryCatalog(perms map[Role][]Permission) *MemoryCatalog {
	m := &MemoryCatalog{perms: make(map[Role][]Permission, len(perms))}
	for r, ps := range perms {
		m.perms[r] = append([]Permission(nil), ps...)
	}
	return m
}

func (m *MemoryCatalog) PermissionsForRole(ctx context.Context, role Role) ([]Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Permission(nil), m.perms[role]...), nil
}

func (m *MemoryCatalog) ReplaceRolePermissions(ctx context.Context, role Role, perms []Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perms[role] = append([]Permission(nil), perms...)
	return nil
}
