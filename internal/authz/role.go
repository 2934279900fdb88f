// Package authz implements role and permission checks for the platform:
// a role → permission catalog backed by Postgres, a read-through cache with
// explicit invalidation, and a two-level authorizer (feature permission,
// then data ownership).
package authz

// Role names a platform role. Roles are rows in the role_permissions catalog,
// except super_admin which bypasses permission checks in code.
type Role string

const (
	RoleSuperAdmin      Role = "super_admin"
	RolePlatformAdmin   Role = "platform_admin"
	RolePropertyManager Role = "property_manager"
	RoleMaintenanceTech Role = "maintenance_tech"
	RoleTenant          Role = "tenant"
)

// ValidRole reports whether r is one of the platform roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleSuperAdmin, RolePlatformAdmin, RolePropertyManager, RoleMaintenanceTech, RoleTenant:
		return true
	}
	return false
}

// Permission names a feature-level capability as "resource:action".
type Permission string

const (
	PermPropertyRead   Permission = "property:read"
	PermPropertyUpdate Permission = "property:update"
	PermPropertyManage Permission = "property:manage"

	PermUnitRead   Permission = "unit:read"
	PermUnitUpdate Permission = "unit:update"

	PermLeaseRead      Permission = "lease:read"
	PermLeaseCreate    Permission = "lease:create"
	PermLeaseTerminate Permission = "lease:terminate"

	PermMaintenanceRead   Permission = "maintenance:read"
	PermMaintenanceCreate Permission = "maintenance:create"
	PermMaintenanceUpdate Permission = "maintenance:update"
	PermMaintenanceClose  Permission = "maintenance:close"

	PermPaymentRead   Permission = "payment:read"
	PermPaymentCreate Permission = "payment:create"

	PermUserRead   Permission = "user:read"
	PermUserManage Permission = "user:manage"

	PermReportRead Permission = "report:read"
)

// Relation names how a user is connected to a resource. Ownership rules map
// (role, resource type) pairs to the relations that satisfy the data-level check.
type Relation string

const (
	// RelationManages links a manager to a property and everything in it.
	RelationManages Relation = "MANAGES"
	// RelationIsSelf links a user to their own account and records.
	RelationIsSelf Relation = "IS_SELF"
	// RelationOccupies links a tenant to their unit and its lease artifacts.
	RelationOccupies Relation = "OCCUPIES"
	// RelationAssigned links a maintenance tech to a work order.
	RelationAssigned Relation = "ASSIGNED"
	// RelationNone is returned by resolvers when no relation exists.
	RelationNone Relation = "NONE"

	// RelationAny appears only in ownership rules, never in resolver answers:
	// the rule is satisfied without consulting the resolver at all. Used for
	// roles with platform-wide data access.
	RelationAny Relation = "*"
)

// Defaults returns the baseline role → permission catalog. It mirrors the
// rows seeded by the role_permissions migration and backs the in-memory
// catalog used in tests and seeding. super_admin has no entry: it is
// short-circuited before the catalog is consulted.
func Defaults() map[Role][]Permission {
	return map[Role][]Permission{
		RolePlatformAdmin: {
			PermPropertyRead, PermPropertyUpdate, PermPropertyManage,
			PermUnitRead, PermUnitUpdate,
			PermLeaseRead, PermLeaseCreate, PermLeaseTerminate,
			PermMaintenanceRead, PermMaintenanceCreate, PermMaintenanceUpdate, PermMaintenanceClose,
			PermPaymentRead, PermPaymentCreate,
			PermUserRead, PermUserManage,
			PermReportRead,
		},
		RolePropertyManager: {
			PermPropertyRead, PermPropertyUpdate,
			PermUnitRead, PermUnitUpdate,
			PermLeaseRead, PermLeaseCreate, PermLeaseTerminate,
			PermMaintenanceRead, PermMaintenanceUpdate, PermMaintenanceClose,
			PermPaymentRead,
			PermReportRead,
		},
		RoleMaintenanceTech: {
			PermMaintenanceRead, PermMaintenanceUpdate,
			PermUnitRead,
		},
		RoleTenant: {
			PermLeaseRead,
			PermMaintenanceRead, PermMaintenanceCreate,
			PermPaymentRead, PermPaymentCreate,
		},
	}
}
