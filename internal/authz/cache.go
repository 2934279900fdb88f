package authz

import (
	"context"
	"sync"
	"time"
)

// RoleSource resolves a user's current role. Implemented by the user
// repository; returns the empty Role for unknown users.
type RoleSource interface {
	GetRole(ctx context.Context, userID string) (Role, error)
}

// Snapshot is a user's effective role and permission set at resolution time.
type Snapshot struct {
	Role        Role
	Permissions []Permission
}

// Has reports whether the snapshot grants p.
func (s Snapshot) Has(p Permission) bool {
	for _, have := range s.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// Cache is a read-through cache of per-user permission snapshots with a short
// TTL and explicit invalidation. Role reassignment and catalog edits call
// Invalidate/InvalidateAll synchronously; once those return, no later Get
// serves the old snapshot.
type Cache struct {
	roles   RoleSource
	catalog Catalog
	ttl     time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry
	gens    map[string]uint64
	allGen  uint64

	now func() time.Time
}

type cacheEntry struct {
	snap      Snapshot
	expiresAt time.Time
}

// NewCache returns a Cache resolving through roles and catalog with the given TTL.
func NewCache(roles RoleSource, catalog Catalog, ttl time.Duration) *Cache {
	return &Cache{
		roles:   roles,
		catalog: catalog,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		gens:    make(map[string]uint64),
		now:     time.Now,
	}
}

// Get returns the user's current snapshot, resolving through the role source
// and catalog on a miss. Unknown users resolve to an empty snapshot (cached
// like any other, so repeated probes do not hammer the store).
func (c *Cache) Get(ctx context.Context, userID string) (Snapshot, error) {
	c.mu.RLock()
	if e, ok := c.entries[userID]; ok && c.now().Before(e.expiresAt) {
		snap := e.snap
		snap.Permissions = append([]Permission(nil), e.snap.Permissions...)
		c.mu.RUnlock()
		return snap, nil
	}
	keyGen := c.gens[userID]
	allGen := c.allGen
	c.mu.RUnlock()

	snap, err := c.resolve(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}

	// Store only if no invalidation raced the resolve, otherwise a snapshot
	// read before the change would survive past the invalidation call.
	c.mu.Lock()
	if c.gens[userID] == keyGen && c.allGen == allGen {
		c.entries[userID] = cacheEntry{snap: snap, expiresAt: c.now().Add(c.ttl)}
	}
	c.mu.Unlock()

	out := snap
	out.Permissions = append([]Permission(nil), snap.Permissions...)
	return out, nil
}

func (c *Cache) resolve(ctx context.Context, userID string) (Snapshot, error) {
	role, err := c.roles.GetRole(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if role == "" {
		return Snapshot{}, nil
	}
	perms, err := c.catalog.PermissionsForRole(ctx, role)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Role: role, Permissions: perms}, nil
}

// Invalidate drops the user's snapshot. Synchronous: when it returns, any
// subsequent Get resolves fresh.
func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.gens[userID]++
	c.mu.Unlock()
}

// InvalidateAll drops every snapshot. Called after catalog edits, which can
// affect any user holding the edited role.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.allGen++
	c.mu.Unlock()
}

// Len returns the number of cached snapshots, counting expired ones not yet
// overwritten.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
