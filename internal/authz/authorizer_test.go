package authz

import (
	"context"
	"sync"
	"testing"
	"time"
)

// memRoleSource implements RoleSource for tests.
type memRoleSource struct {
	mu    sync.Mutex
	roles map[string]Role
	calls int
}

func (m *memRoleSource) GetRole(ctx context.Context, userID string) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.roles[userID], nil
}

func (m *memRoleSource) setRole(userID string, role Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[userID] = role
}

func (m *memRoleSource) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// countingResolver wraps a StaticResolver and counts Check calls.
type countingResolver struct {
	inner *StaticResolver
	mu    sync.Mutex
	calls int
}

func (c *countingResolver) Check(ctx context.Context, userID, resourceType, resourceID string) (Relation, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.inner.Check(ctx, userID, resourceType, resourceID)
}

func newTestAuthorizer(roles map[string]Role) (*Authorizer, *memRoleSource, *StaticResolver, *Cache) {
	src := &memRoleSource{roles: roles}
	cache := NewCache(src, NewMemoryCatalog(Defaults()), 10*time.Minute)
	resolver := NewStaticResolver()
	a := NewAuthorizer(cache, resolver, DefaultRules())
	return a, src, resolver, cache
}

func TestAuthorize_SuperAdminBypassesEverything(t *testing.T) {
	a, _, _, _ := newTestAuthorizer(map[string]Role{"u1": RoleSuperAdmin})
	ident := Identity{UserID: "u1", Role: RoleSuperAdmin, SessionID: "s1"}

	// Includes a permission string no role's set has ever contained.
	for _, perm := range []Permission{PermUserManage, PermPropertyManage, Permission("launch:rocket")} {
		d, err := a.Authorize(context.Background(), ident, perm, nil)
		if err != nil {
			t.Fatalf("Authorize(%s): %v", perm, err)
		}
		if !d.Allowed {
			t.Errorf("Authorize(%s) = deny %q, want allow", perm, d.Reason)
		}
	}

	d, err := a.Authorize(context.Background(), ident, Permission("launch:rocket"), &ResourceRef{Type: ResourceProperty, ID: "p1"})
	if err != nil {
		t.Fatalf("Authorize with ref: %v", err)
	}
	if !d.Allowed {
		t.Errorf("Authorize with ref = deny %q, want allow", d.Reason)
	}
}

func TestAuthorize_MissingPermission(t *testing.T) {
	a, _, _, _ := newTestAuthorizer(map[string]Role{"u1": RoleTenant})
	ident := Identity{UserID: "u1", Role: RoleTenant, SessionID: "s1"}

	d, err := a.Authorize(context.Background(), ident, PermPropertyManage, nil)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if d.Allowed {
		t.Fatal("tenant allowed property:manage, want deny")
	}
	if d.Reason != DenyMissingPermission {
		t.Errorf("Reason = %q, want %q", d.Reason, DenyMissingPermission)
	}
	if d.Permission != PermPropertyManage {
		t.Errorf("Permission = %q, want %q", d.Permission, PermPropertyManage)
	}
}

func TestAuthorize_FeatureLevelOnly(t *testing.T) {
	a, _, _, _ := newTestAuthorizer(map[string]Role{"u1": RoleTenant})
	ident := Identity{UserID: "u1", Role: RoleTenant, SessionID: "s1"}

	d, err := a.Authorize(context.Background(), ident, PermLeaseRead, nil)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !d.Allowed {
		t.Errorf("tenant denied lease:read (%q), want allow", d.Reason)
	}
}

func TestAuthorize_ManagerWithoutRelationDenied(t *testing.T) {
	a, _, _, _ := newTestAuthorizer(map[string]Role{"u1": RolePropertyManager})
	ident := Identity{UserID: "u1", Role: RolePropertyManager, SessionID: "s1"}

	// Manager holds the permission but no relation to property p9.
	d, err := a.Authorize(context.Background(), ident, PermPropertyRead, &ResourceRef{Type: ResourceProperty, ID: "p9"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if d.Allowed {
		t.Fatal("manager allowed on unmanaged property, want deny")
	}
	if d.Reason != DenyNotOwner {
		t.Errorf("Reason = %q, want %q", d.Reason, DenyNotOwner)
	}
	if d.Permission != PermPropertyRead {
		t.Errorf("Permission = %q, want %q", d.Permission, PermPropertyRead)
	}
}

func TestAuthorize_ManagerWithRelationAllowed(t *testing.T) {
	a, _, resolver, _ := newTestAuthorizer(map[string]Role{"u1": RolePropertyManager})
	resolver.Grant("u1", ResourceProperty, "p1", RelationManages)
	ident := Identity{UserID: "u1", Role: RolePropertyManager, SessionID: "s1"}

	d, err := a.Authorize(context.Background(), ident, PermPropertyRead, &ResourceRef{Type: ResourceProperty, ID: "p1"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !d.Allowed {
		t.Errorf("manager denied on managed property (%q), want allow", d.Reason)
	}
}

func TestAuthorize_TenantSelfMaintenanceRequest(t *testing.T) {
	a, _, resolver, _ := newTestAuthorizer(map[string]Role{"u1": RoleTenant})
	resolver.Grant("u1", ResourceMaintenance, "m1", RelationIsSelf)
	ident := Identity{UserID: "u1", Role: RoleTenant, SessionID: "s1"}

	d, err := a.Authorize(context.Background(), ident, PermMaintenanceRead, &ResourceRef{Type: ResourceMaintenance, ID: "m1"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !d.Allowed {
		t.Errorf("tenant denied own maintenance request (%q), want allow", d.Reason)
	}

	d, err = a.Authorize(context.Background(), ident, PermMaintenanceRead, &ResourceRef{Type: ResourceMaintenance, ID: "m2"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if d.Allowed {
		t.Error("tenant allowed someone else's maintenance request, want deny")
	}
}

func TestAuthorize_PlatformAdminSkipsResolver(t *testing.T) {
	src := &memRoleSource{roles: map[string]Role{"u1": RolePlatformAdmin}}
	cache := NewCache(src, NewMemoryCatalog(Defaults()), 10*time.Minute)
	resolver := &countingResolver{inner: NewStaticResolver()}
	a := NewAuthorizer(cache, resolver, DefaultRules())
	ident := Identity{UserID: "u1", Role: RolePlatformAdmin, SessionID: "s1"}

	d, err := a.Authorize(context.Background(), ident, PermPropertyUpdate, &ResourceRef{Type: ResourceProperty, ID: "p1"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("platform_admin denied property:update (%q), want allow", d.Reason)
	}
	if resolver.calls != 0 {
		t.Errorf("resolver called %d times for platform_admin, want 0", resolver.calls)
	}
}

func TestAuthorize_RoleChangeVisibleAfterInvalidate(t *testing.T) {
	a, src, resolver, cache := newTestAuthorizer(map[string]Role{"u1": RoleTenant})
	ident := Identity{UserID: "u1", Role: RoleTenant, SessionID: "s1"}
	ref := &ResourceRef{Type: ResourceProperty, ID: "p1"}

	d, err := a.Authorize(context.Background(), ident, PermPropertyUpdate, ref)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if d.Allowed {
		t.Fatal("tenant allowed property:update, want deny")
	}

	// Promote the user. Without invalidation the cached tenant snapshot
	// still answers.
	src.setRole("u1", RolePropertyManager)
	resolver.Grant("u1", ResourceProperty, "p1", RelationManages)

	d, err = a.Authorize(context.Background(), ident, PermPropertyUpdate, ref)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if d.Allowed {
		t.Fatal("promotion visible before invalidation, want cached deny")
	}

	cache.Invalidate("u1")

	d, err = a.Authorize(context.Background(), ident, PermPropertyUpdate, ref)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !d.Allowed {
		t.Errorf("promotion not visible after invalidation (%q), want allow", d.Reason)
	}
}

func TestAuthorize_UnknownUserDenied(t *testing.T) {
	a, _, _, _ := newTestAuthorizer(map[string]Role{})
	ident := Identity{UserID: "ghost", SessionID: "s1"}

	d, err := a.Authorize(context.Background(), ident, PermLeaseRead, nil)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if d.Allowed {
		t.Error("unknown user allowed, want deny")
	}
	if d.Reason != DenyMissingPermission {
		t.Errorf("Reason = %q, want %q", d.Reason, DenyMissingPermission)
	}
}

func TestAuthorize_ObserverSeesDecisions(t *testing.T) {
	a, _, _, _ := newTestAuthorizer(map[string]Role{"u1": RoleTenant})

	var seen []Decision
	a.Observe(func(d Decision) { seen = append(seen, d) })

	ident := Identity{UserID: "u1", Role: RoleTenant, SessionID: "s1"}
	if _, err := a.Authorize(context.Background(), ident, PermLeaseRead, nil); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if _, err := a.Authorize(context.Background(), ident, PermUserManage, nil); err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	if len(seen) != 2 {
		t.Fatalf("observer saw %d decisions, want 2", len(seen))
	}
	if !seen[0].Allowed || seen[0].Permission != PermLeaseRead {
		t.Errorf("first decision = %+v", seen[0])
	}
	if seen[1].Allowed || seen[1].Reason != DenyMissingPermission {
		t.Errorf("second decision = %+v", seen[1])
	}
}
