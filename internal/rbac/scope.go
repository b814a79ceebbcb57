package rbac

// ScopePredicate returns the branch filter applied by module-scoped listings
// before results reach the caller. Unrestricted roles see every branch. A
// restricted principal with no branch assigned matches nothing; a missing
// branch is an expected state for a newly created account, so listings come
// back empty rather than failing.
func ScopePredicate(principal Principal) func(branch string) bool {
	if IsUnrestricted(principal.Role) {
		return func(string) bool { return true }
	}
	if principal.Branch == "" {
		return func(string) bool { return false }
	}
	own := principal.Branch
	return func(branch string) bool { return branch == own }
}
