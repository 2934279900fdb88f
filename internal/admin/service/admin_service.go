package service

import (
	"context"
	"errors"
	"fmt"

	"property-platform/access-core/internal/audit"
	"property-platform/access-core/internal/authz"
	"property-platform/access-core/internal/notify"
	sessiondomain "property-platform/access-core/internal/session/domain"
	sessionservice "property-platform/access-core/internal/session/service"
	userdomain "property-platform/access-core/internal/user/domain"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidRole  = errors.New("invalid role")
)

// UserStore is the minimal user repository needed by the admin service.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	UpdateRole(ctx context.Context, userID string, role authz.Role) error
	SetActive(ctx context.Context, userID string, active bool) error
}

// AdminService implements operator actions on users, roles, and sessions.
// Every method takes the acting admin's identity for the audit trail; the
// permission check itself happens in the handler layer.
type AdminService struct {
	users    UserStore
	registry *sessionservice.Registry
	catalog  authz.Catalog
	cache    *authz.Cache
	auditor  audit.AuditLogger
	notifier notify.Notifier
}

// NewAdminService returns an AdminService. auditor and notifier may be nil.
func NewAdminService(
	users UserStore,
	registry *sessionservice.Registry,
	catalog authz.Catalog,
	cache *authz.Cache,
	auditor audit.AuditLogger,
	notifier notify.Notifier,
) *AdminService {
	if auditor == nil {
		auditor = audit.NewLogger(nil, nil)
	}
	return &AdminService{
		users:    users,
		registry: registry,
		catalog:  catalog,
		cache:    cache,
		auditor:  auditor,
		notifier: notifier,
	}
}

// AssignRole sets the user's role and drops their cached permission snapshot,
// so the change is live before this call returns. Existing sessions keep
// running; their tokens pick up the new role on the next refresh, and
// server-side checks see it immediately.
func (s *AdminService) AssignRole(ctx context.Context, actor authz.Identity, userID string, role authz.Role) error {
	if !authz.ValidRole(role) {
		return ErrInvalidRole
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	previous := user.Role
	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		return err
	}
	s.cache.Invalidate(userID)

	s.auditor.LogEvent(ctx, actor.UserID, "role_changed", "user:"+userID,
		fmt.Sprintf(`{"from":%q,"to":%q}`, previous, role))
	notify.PublishAsync(s.notifier, &notify.Event{
		Type:     notify.EventRoleChanged,
		UserID:   userID,
		Metadata: map[string]string{"from": string(previous), "to": string(role), "actor": actor.UserID},
	})
	return nil
}

// SetRolePermissions replaces the permission set of a catalog-backed role and
// drops every cached snapshot, since any user may hold the edited role.
// super_admin is not editable: its bypass lives in code, not in the catalog.
func (s *AdminService) SetRolePermissions(ctx context.Context, actor authz.Identity, role authz.Role, perms []authz.Permission) error {
	if !authz.ValidRole(role) || role == authz.RoleSuperAdmin {
		return ErrInvalidRole
	}
	if err := s.catalog.ReplaceRolePermissions(ctx, role, perms); err != nil {
		return err
	}
	s.cache.InvalidateAll()

	s.auditor.LogEvent(ctx, actor.UserID, "role_permissions_changed", "role:"+string(role),
		fmt.Sprintf(`{"count":%d}`, len(perms)))
	return nil
}

// ForceLogout revokes every active session of the user and blacklists their
// tokens. Returns how many sessions were revoked.
func (s *AdminService) ForceLogout(ctx context.Context, actor authz.Identity, userID string) (int, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, ErrUserNotFound
	}

	count, err := s.registry.RevokeAll(ctx, userID, sessiondomain.ReasonAdminRevoke, "")
	if err != nil {
		return count, err
	}
	s.auditor.LogEvent(ctx, actor.UserID, "force_logout", "user:"+userID,
		fmt.Sprintf(`{"revoked":%d}`, count))
	notify.PublishAsync(s.notifier, &notify.Event{
		Type:     notify.EventForceLogout,
		UserID:   userID,
		Metadata: map[string]string{"actor": actor.UserID},
	})
	return count, nil
}

// SetActive activates or deactivates a user account. Deactivation also kills
// the user's sessions and cached permissions, so on return they hold nothing
// usable.
func (s *AdminService) SetActive(ctx context.Context, actor authz.Identity, userID string, active bool) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	if err := s.users.SetActive(ctx, userID, active); err != nil {
		return err
	}

	action := "user_reactivated"
	if !active {
		action = "user_deactivated"
		if _, err := s.registry.RevokeAll(ctx, userID, sessiondomain.ReasonAdminRevoke, ""); err != nil {
			return err
		}
		s.cache.Invalidate(userID)
	}
	s.auditor.LogEvent(ctx, actor.UserID, action, "user:"+userID, "")
	return nil
}
