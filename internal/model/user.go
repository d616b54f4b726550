package model

import (
	"sort"
	"time"
)

// Role is the enumerated authorization level of a user.  Each role carries a
// fixed permission set; see Permissions.
type Role string

const (
	RoleUser    Role = "USER"
	RoleManager Role = "MANAGER"
	RoleAdmin   Role = "ADMIN"
)

// Permission is a single granted authority such as "manager:read".
type Permission string

const (
	PermManagerRead   Permission = "manager:read"
	PermManagerCreate Permission = "manager:create"
	PermManagerUpdate Permission = "manager:update"
	PermManagerDelete Permission = "manager:delete"
	PermAdminRead     Permission = "admin:read"
	PermAdminCreate   Permission = "admin:create"
	PermAdminUpdate   Permission = "admin:update"
	PermAdminDelete   Permission = "admin:delete"
)

var managerPerms = []Permission{PermManagerRead, PermManagerCreate, PermManagerUpdate, PermManagerDelete}

var rolePerms = map[Role][]Permission{
	RoleUser:    nil,
	RoleManager: managerPerms,
	RoleAdmin: append([]Permission{PermAdminRead, PermAdminCreate, PermAdminUpdate, PermAdminDelete},
		managerPerms...),
}

// ParseRole maps a stored role name to a Role.  Unknown names fall back to
// RoleUser so a corrupted row never escalates privileges.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleManager, RoleAdmin:
		return Role(s)
	}
	return RoleUser
}

// Permissions returns a copy of the role's permission set.
func (r Role) Permissions() []Permission {
	src := rolePerms[r]
	out := make([]Permission, len(src))
	copy(out, src)
	return out
}

// Authorities returns the permission names plus "ROLE_<name>", sorted.
func (r Role) Authorities() []string {
	perms := rolePerms[r]
	out := make([]string, 0, len(perms)+1)
	for _, p := range perms {
		out = append(out, string(p))
	}
	out = append(out, "ROLE_"+string(r))
	sort.Strings(out)
	return out
}

// Has reports whether the role grants p.
func (r Role) Has(p Permission) bool {
	for _, q := range rolePerms[r] {
		if q == p {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of an account.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusDeleted   Status = "DELETED"
)

// CanAuthenticate reports whether credentials for this status may log in.
func (s Status) CanAuthenticate() bool { return s == StatusActive }

// User mirrors the `users` table.
type User struct {
	ID           string // users.id (uuid)
	Email        string // users.email, unique, lower-cased
	PasswordHash string // users.password_hash (bcrypt)
	FullName     string
	Phone        string
	Address      string
	AvatarURL    string
	Role         Role
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
