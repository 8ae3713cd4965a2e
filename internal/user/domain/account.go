package domain

import (
	"errors"
	"strings"
	"time"

	"storehub/backend/internal/platform/rbac"
)

// Account is the login identity consulted by the session core. Authentication only reads it,
// apart from stamping LastLoginAt.
type Account struct {
	ID           string
	Username     string
	PasswordHash string
	Role         rbac.Role
	// Permissions are granted on top of the role's base set.
	Permissions []rbac.Permission
	Active      bool
	DeletedAt   *time.Time // nil unless soft-deleted
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CanAuthenticate reports whether the account is enabled and not soft-deleted.
func (a *Account) CanAuthenticate() bool {
	return a.Active && a.DeletedAt == nil
}

// Validate validates the account for persistence. Returns an error describing the first validation failure.
func (a *Account) Validate() error {
	if a.ID == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(a.Username) == "" {
		return errors.New("username is required")
	}
	if a.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if a.Role == "" {
		return errors.New("role is required")
	}
	return nil
}
