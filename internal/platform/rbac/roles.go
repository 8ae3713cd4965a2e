// Package rbac holds the principal/authority model: the role to permission table, effective
// permission computation, the request principal, and the authorization check.
package rbac

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Role is an account role.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleUser    Role = "USER"
)

// BuiltinRoles lists the roles accounts are created with. A custom role table must define all of them.
var BuiltinRoles = []Role{RoleAdmin, RoleManager, RoleUser}

// Permission is a named capability checked by protected operations.
type Permission string

const (
	PermUsersRead      Permission = "users:read"
	PermUsersWrite     Permission = "users:write"
	PermProductsRead   Permission = "products:read"
	PermProductsWrite  Permission = "products:write"
	PermAuditRead      Permission = "audit:read"
	PermSessionsRead   Permission = "sessions:read"
	PermSessionsRevoke Permission = "sessions:revoke"
)

// ErrUnknownRole is returned when a role has no entry in the table.
var ErrUnknownRole = errors.New("unknown role")

// RoleTable maps each role to its base permission set. It is read-only after construction.
type RoleTable struct {
	base map[Role][]Permission
}

// DefaultRoleTable returns the built-in table: ADMIN ⊇ MANAGER ⊇ USER.
func DefaultRoleTable() *RoleTable {
	user := []Permission{PermProductsRead}
	manager := append([]Permission{PermUsersRead, PermProductsWrite, PermAuditRead}, user...)
	admin := append([]Permission{PermUsersWrite, PermSessionsRead, PermSessionsRevoke}, manager...)
	return NewRoleTable(map[Role][]Permission{
		RoleAdmin:   admin,
		RoleManager: manager,
		RoleUser:    user,
	})
}

// NewRoleTable builds a table from base, copying and normalizing each permission list.
func NewRoleTable(base map[Role][]Permission) *RoleTable {
	t := &RoleTable{base: make(map[Role][]Permission, len(base))}
	for role, perms := range base {
		t.base[role] = normalize(perms)
	}
	return t
}

type roleFile struct {
	Roles map[string][]string `yaml:"roles"`
}

// LoadRoleTable reads a YAML role table of the form:
//
//	roles:
//	  ADMIN: [users:read, users:write]
//	  USER: [products:read]
func LoadRoleTable(path string) (*RoleTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read role table: %w", err)
	}
	var f roleFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse role table: %w", err)
	}
	if len(f.Roles) == 0 {
		return nil, errors.New("role table: no roles defined")
	}
	base := make(map[Role][]Permission, len(f.Roles))
	for role, perms := range f.Roles {
		ps := make([]Permission, 0, len(perms))
		for _, p := range perms {
			ps = append(ps, Permission(p))
		}
		base[Role(role)] = ps
	}
	return NewRoleTable(base), nil
}

// Valid reports whether role has an entry in the table.
func (t *RoleTable) Valid(role Role) bool {
	_, ok := t.base[role]
	return ok
}

// Require fails with ErrUnknownRole naming the first of roles missing from the table.
func (t *RoleTable) Require(roles ...Role) error {
	for _, r := range roles {
		if !t.Valid(r) {
			return fmt.Errorf("%w: %s", ErrUnknownRole, r)
		}
	}
	return nil
}

// basePermissions returns a copy of the base permission set for role.
func (t *RoleTable) basePermissions(role Role) ([]Permission, error) {
	perms, ok := t.base[role]
	if !ok {
		return nil, ErrUnknownRole
	}
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out, nil
}

// EffectivePermissions returns the sorted union of role's base set and supplemental.
// An unknown role contributes nothing.
func (t *RoleTable) EffectivePermissions(role Role, supplemental []Permission) []Permission {
	merged := make([]Permission, 0, len(t.base[role])+len(supplemental))
	merged = append(merged, t.base[role]...)
	merged = append(merged, supplemental...)
	return normalize(merged)
}

func normalize(perms []Permission) []Permission {
	seen := make(map[Permission]struct{}, len(perms))
	out := make([]Permission, 0, len(perms))
	for _, p := range perms {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings converts permissions to their string form, e.g. for token claims.
func Strings(perms []Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

// FromStrings converts claim strings back to permissions.
func FromStrings(ss []string) []Permission {
	out := make([]Permission, len(ss))
	for i, s := range ss {
		out[i] = Permission(s)
	}
	return out
}
