package rbac

import "github.com/meridian-crm/meridian-crm/internal/modules"

// Resolve computes the effective permission set for a principal from its
// persisted legacy list and grant records. It is a pure function of its
// inputs: no I/O, no shared state, safe for concurrent use. The result is
// total over the catalog and by construction never fails.
func Resolve(principal Principal, legacyList []modules.ID, grants []GrantRecord) EffectiveSet {
	result := make(EffectiveSet, len(modules.All()))

	if IsUnrestricted(principal.Role) {
		for _, id := range modules.All() {
			result[id] = Permission{Viewable: true, CanAdd: true, CanEdit: true, CanDelete: true}
		}
		return result
	}

	legacy := make(map[modules.ID]struct{}, len(legacyList))
	for _, id := range legacyList {
		legacy[modules.Canonicalize(id)] = struct{}{}
	}
	byModule := make(map[modules.ID]GrantRecord, len(grants))
	for _, grant := range grants {
		grant.Module = modules.Canonicalize(grant.Module)
		byModule[grant.Module] = grant
	}

	// The role default is a floor applied only when nothing explicit was
	// ever stored for the principal.
	defaults := map[modules.ID]struct{}{}
	if len(legacy) == 0 && len(byModule) == 0 {
		defaults = DefaultModules(principal.Role)
	}

	for _, id := range modules.All() {
		perm := Permission{}
		grant, granted := byModule[id]
		if granted {
			perm.CanAdd = grant.CanAdd
			perm.CanEdit = grant.CanEdit
			perm.CanDelete = grant.CanDelete
		}
		// A grant row with all flags false still marks the module as
		// explicitly considered, view-only.
		_, inDefaults := defaults[id]
		_, inLegacy := legacy[id]
		perm.Viewable = inDefaults || inLegacy || granted
		result[id] = perm
	}

	// Rights on a dependent module imply visibility on its parent.
	for child, parent := range modules.Dependencies() {
		if childPerm := result[child]; childPerm.Viewable || childPerm.CanAdd || childPerm.CanEdit || childPerm.CanDelete {
			parentPerm := result[parent]
			parentPerm.Viewable = true
			result[parent] = parentPerm
		}
	}

	for id := range ForbiddenModules(principal.Role) {
		result[id] = Permission{}
	}

	dashboard := result[modules.Dashboard]
	dashboard.Viewable = true
	result[modules.Dashboard] = dashboard

	return result
}
