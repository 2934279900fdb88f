package authz

import (
	"context"
	"sync"
)

// ResourceRef points at one concrete resource for a data-level check.
type ResourceRef struct {
	Type string
	ID   string
}

// Resource types the platform registers ownership rules for.
const (
	ResourceProperty    = "property"
	ResourceUnit        = "unit"
	ResourceLease       = "lease"
	ResourceMaintenance = "maintenance_request"
	ResourcePayment     = "payment"
	ResourceUser        = "user"
	ResourceReport      = "report"
)

// OwnershipResolver answers how a user is connected to a specific resource.
// Implemented outside this core by the business-entity services; this package
// ships a Postgres-backed resolver over the resource_assignments table and an
// in-memory one for tests.
type OwnershipResolver interface {
	// Check returns the user's relation to the resource, or RelationNone.
	// When a user holds several relations, the strongest wins (MANAGES, then
	// ASSIGNED, then OCCUPIES, then IS_SELF).
	Check(ctx context.Context, userID, resourceType, resourceID string) (Relation, error)
}

// relationPrecedence orders resolver answers strongest-first.
var relationPrecedence = []Relation{RelationManages, RelationAssigned, RelationOccupies, RelationIsSelf}

// Rules maps (role, resource type) to the relations that satisfy the
// data-level check. A pair with no entry is never satisfied.
type Rules map[Role]map[string][]Relation

// DefaultRules returns the shipped ownership rules.
//
// platform_admin operates platform-wide, so its rules use RelationAny and skip
// the resolver. super_admin does not appear: it never reaches the data level.
func DefaultRules() Rules {
	adminAll := map[string][]Relation{
		ResourceProperty:    {RelationAny},
		ResourceUnit:        {RelationAny},
		ResourceLease:       {RelationAny},
		ResourceMaintenance: {RelationAny},
		ResourcePayment:     {RelationAny},
		ResourceUser:        {RelationAny},
		ResourceReport:      {RelationAny},
	}
	return Rules{
		RolePlatformAdmin: adminAll,
		RolePropertyManager: {
			ResourceProperty:    {RelationManages},
			ResourceUnit:        {RelationManages},
			ResourceLease:       {RelationManages},
			ResourceMaintenance: {RelationManages},
			ResourcePayment:     {RelationManages},
			ResourceReport:      {RelationManages},
			ResourceUser:        {RelationIsSelf},
		},
		RoleMaintenanceTech: {
			ResourceMaintenance: {RelationAssigned},
			ResourceUnit:        {RelationAssigned},
			ResourceUser:        {RelationIsSelf},
		},
		RoleTenant: {
			ResourceUnit:        {RelationOccupies},
			ResourceLease:       {RelationOccupies},
			ResourceMaintenance: {RelationOccupies, RelationIsSelf},
			ResourcePayment:     {RelationIsSelf},
			ResourceUser:        {RelationIsSelf},
		},
	}
}

// Satisfies reports whether relation meets the rule for (role, resourceType).
// RelationAny in the rule matches regardless of relation.
func (r Rules) Satisfies(role Role, resourceType string, relation Relation) bool {
	byType, ok := r[role]
	if !ok {
		return false
	}
	allowed, ok := byType[resourceType]
	if !ok {
		return false
	}
	for _, a := range allowed {
		if a == RelationAny {
			return true
		}
		if a == relation && relation != RelationNone {
			return true
		}
	}
	return false
}

// SkipsResolver reports whether the rule for (role, resourceType) contains
// RelationAny, meaning the resolver lookup can be skipped entirely.
func (r Rules) SkipsResolver(role Role, resourceType string) bool {
	byType, ok := r[role]
	if !ok {
		return false
	}
	for _, a := range byType[resourceType] {
		if a == RelationAny {
			return true
		}
	}
	return false
}

// StaticResolver is an in-memory OwnershipResolver for tests and seeding.
// Relations are keyed by userID, resource type, and resource ID.
type StaticResolver struct {
	mu        sync.RWMutex
	relations map[string][]Relation
}

// NewStaticResolver returns an empty StaticResolver.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{relations: make(map[string][]Relation)}
}

// Grant records that userID holds relation to the given resource.
func (s *StaticResolver) Grant(userID, resourceType, resourceID string, relation Relation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := staticKey(userID, resourceType, resourceID)
	s.relations[k] = append(s.relations[k], relation)
}

// Check returns the strongest relation userID holds to the resource, or RelationNone.
func (s *StaticResolver) Check(ctx context.Context, userID, resourceType, resourceID string) (Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	held := s.relations[staticKey(userID, resourceType, resourceID)]
	if len(held) == 0 {
		return RelationNone, nil
	}
	for _, strongest := range relationPrecedence {
		for _, h := range held {
			if h == strongest {
				return strongest, nil
			}
		}
	}
	return RelationNone, nil
}

func staticKey(userID, resourceType, resourceID string) string {
	return userID + "\x00" + resourceType + "\x00" + resourceID
}
