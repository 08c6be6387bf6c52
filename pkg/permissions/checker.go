// Package permissions maps portal roles to permission sets and checks
// required permissions with wildcard support.
//
// Permission format:
//   - "*" - full access
//   - "resource.*" - every action on a resource (e.g. "catalog.*")
//   - "resource.action" - one action (e.g. "applications.review")
package permissions

import (
	"strings"
)

// Portal roles, ordered from least to most privileged
const (
	RoleUser      = "user"
	RoleAdmin     = "admin"
	RoleSuperuser = "superuser"
)

// Permissions checked by the portal
const (
	ApplicationsSubmit  = "applications.submit"
	ApplicationsReadOwn = "applications.read_own"
	ApplicationsReview  = "applications.review"
	DocumentsReadAny    = "documents.read_any"
	DocumentsRespond    = "documents.respond"
	CatalogManage       = "catalog.manage"
	SettingsManage      = "settings.manage"
	UsersManage         = "users.manage"
	ProfileManage       = "profile.manage"
)

var rolePermissions = map[string][]string{
	RoleUser: {
		ApplicationsSubmit,
		ApplicationsReadOwn,
		ProfileManage,
	},
	RoleAdmin: {
		"applications.*",
		"documents.*",
		"catalog.*",
		"settings.*",
		ProfileManage,
	},
	RoleSuperuser: {"*"},
}

var roleRank = map[string]int{
	RoleUser:      1,
	RoleAdmin:     2,
	RoleSuperuser: 3,
}

// ValidRole reports whether role is one of the portal roles.
func ValidRole(role string) bool {
	_, ok := roleRank[role]
	return ok
}

// RoleAtLeast reports whether role ranks at or above minimum.
// Unknown roles never satisfy any minimum.
func RoleAtLeast(role, minimum string) bool {
	have, ok := roleRank[role]
	if !ok {
		return false
	}
	return have >= roleRank[minimum]
}

// IsStaff reports whether role belongs to the admin portal.
func IsStaff(role string) bool {
	return RoleAtLeast(role, RoleAdmin)
}

// ForRole returns the permissions granted to role.
func ForRole(role string) []string {
	return rolePermissions[role]
}

// RoleHas reports whether role grants the required permission.
func RoleHas(role, required string) bool {
	return HasPermission(ForRole(role), required)
}

// HasPermission checks if the permission set includes the required permission.
// Supports "*" and "resource.*" wildcards.
func HasPermission(userPerms []string, required string) bool {
	if required == "" {
		return true
	}

	for _, p := range userPerms {
		if p == "*" || p == required {
			return true
		}
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// HasAnyPermission checks if the permission set has any of the required permissions.
func HasAnyPermission(userPerms []string, required []string) bool {
	for _, req := range required {
		if HasPermission(userPerms, req) {
			return true
		}
	}
	return false
}
