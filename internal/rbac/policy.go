package rbac

import "github.com/meridian-crm/meridian-crm/internal/modules"

// Role policy: the single place that knows which roles bypass grant checks,
// which modules a role can never see, and what a role is shown before any
// explicit grant exists. Every caller consults these functions; the mapping
// is never duplicated at call sites.

// IsUnrestricted reports whether the role bypasses all grant checks. Only
// the super administrator qualifies; unknown roles are restricted.
func IsUnrestricted(role Role) bool {
	return NormalizeRole(role) == RoleSuperAdmin
}

// ForbiddenModules returns the modules a role can never access regardless of
// stored grants. User administration is reserved for the super administrator.
func ForbiddenModules(role Role) map[modules.ID]struct{} {
	if IsUnrestricted(role) {
		return map[modules.ID]struct{}{}
	}
	return map[modules.ID]struct{}{modules.Users: {}}
}

// DefaultModules returns the viewable floor applied when a principal has no
// legacy list and no grant records at all. Explicit grants can only add to
// this floor, never subtract from it.
func DefaultModules(role Role) map[modules.ID]struct{} {
	switch NormalizeRole(role) {
	case RoleAdmin:
		defaults := make(map[modules.ID]struct{})
		for _, id := range modules.All() {
			if id == modules.Users {
				continue
			}
			defaults[id] = struct{}{}
		}
		return defaults
	case RoleTeacher:
		return map[modules.ID]struct{}{modules.Teachers: {}}
	default:
		// Custom and unknown roles fall back to explicit grants only.
		return map[modules.ID]struct{}{}
	}
}
