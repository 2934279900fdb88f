package domain

import (
	"errors"
	"time"

	"property-platform/access-core/internal/authz"
)

// User is the core account entity. The password hash lives on the user row;
// this service has no external identity providers.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         authz.Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.Role == "" {
		u.Role = authz.RoleTenant
	}
	if !authz.ValidRole(u.Role) {
		return errors.New("unknown role")
	}
	return nil
}
