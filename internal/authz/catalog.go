// Package authz holds the static role/permission catalog and the access
// decision middlewares evaluated against the resolved principal.
package authz

import (
	"fmt"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/shared"
)

// Role is a named authorization tier. Comparisons always go through the
// numeric hierarchy level, never declaration order.
type Role string

const (
	RoleMember     Role = "member"
	RoleVolunteer  Role = "volunteer"
	RoleLeader     Role = "leader"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// roleLevels is the total order over roles. Levels are unique; an
// unrecognized role gets level 0 and therefore passes no minimum-role check.
var roleLevels = map[Role]int{
	RoleMember:     1,
	RoleVolunteer:  2,
	RoleLeader:     3,
	RoleAdmin:      4,
	RoleSuperAdmin: 5,
}

// Permission is a named capability mapped to a fixed set of allowed roles.
type Permission string

const (
	PermUsersView      Permission = "users.view"
	PermUsersManage    Permission = "users.manage"
	PermChaptersCreate Permission = "chapters.create"
	PermChaptersManage Permission = "chapters.manage"
	PermEventsCreate   Permission = "events.create"
	PermEventsManage   Permission = "events.manage"
	PermBadgesAward    Permission = "badges.award"
	PermBadgesManage   Permission = "badges.manage"
	PermDashboardView  Permission = "dashboard.view"
)

// catalog maps every permission to the roles allowed to exercise it.
// Immutable after startup; ValidateCatalog is run from main before the
// server accepts traffic.
var catalog = map[Permission][]Role{
	PermUsersView:      {RoleAdmin, RoleSuperAdmin},
	PermUsersManage:    {RoleSuperAdmin},
	PermChaptersCreate: {RoleAdmin, RoleSuperAdmin},
	PermChaptersManage: {RoleLeader, RoleAdmin, RoleSuperAdmin},
	PermEventsCreate:   {RoleLeader, RoleAdmin, RoleSuperAdmin},
	PermEventsManage:   {RoleLeader, RoleAdmin, RoleSuperAdmin},
	PermBadgesAward:    {RoleLeader, RoleAdmin, RoleSuperAdmin},
	PermBadgesManage:   {RoleAdmin, RoleSuperAdmin},
	PermDashboardView:  {RoleAdmin, RoleSuperAdmin},
}

// GlobalAdminRoles bypass chapter delegation checks entirely.
var GlobalAdminRoles = []Role{RoleAdmin, RoleSuperAdmin}

// DelegateCapableRoles may manage the specific chapters delegated to them.
var DelegateCapableRoles = []Role{RoleLeader}

// KnownRole reports whether the role appears in the hierarchy.
func KnownRole(r Role) bool {
	_, ok := roleLevels[r]
	return ok
}

// RoleLevel returns the hierarchy level of r, or 0 for unknown roles.
func RoleLevel(r Role) int {
	return roleLevels[r]
}

// RoleAtLeast reports whether role sits at or above min in the hierarchy.
func RoleAtLeast(role, min Role) bool {
	return roleLevels[role] >= roleLevels[min] && KnownRole(min)
}

// AllowedRoles returns the role set for a permission. An unknown permission
// is a misconfiguration, not a user error.
func AllowedRoles(perm Permission) ([]Role, error) {
	roles, ok := catalog[perm]
	if !ok {
		return nil, fmt.Errorf("authz: permission %q: %w", perm, shared.ErrUnknownPermission)
	}
	return roles, nil
}

// RoleAllowed reports whether role appears in the permission's role set.
func RoleAllowed(perm Permission, role Role) (bool, error) {
	roles, err := AllowedRoles(perm)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

// Permissions lists every catalog entry, for startup validation and the
// permissions listing endpoint.
func Permissions() []Permission {
	perms := make([]Permission, 0, len(catalog))
	for p := range catalog {
		perms = append(perms, p)
	}
	return perms
}

// ValidateCatalog fails fast on any permission without a non-empty set of
// known roles, and on duplicate hierarchy levels.
func ValidateCatalog() error {
	for perm, roles := range catalog {
		if len(roles) == 0 {
			return fmt.Errorf("authz: permission %q has no allowed roles", perm)
		}
		for _, r := range roles {
			if !KnownRole(r) {
				return fmt.Errorf("authz: permission %q references unknown role %q", perm, r)
			}
		}
	}
	seen := make(map[int]Role, len(roleLevels))
	for r, lvl := range roleLevels {
		if lvl <= 0 {
			return fmt.Errorf("authz: role %q has non-positive level %d", r, lvl)
		}
		if prev, ok := seen[lvl]; ok {
			return fmt.Errorf("authz: roles %q and %q share level %d", prev, r, lvl)
		}
		seen[lvl] = r
	}
	return nil
}
