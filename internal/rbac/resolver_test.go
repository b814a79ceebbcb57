package rbac

import (
	"testing"

	"github.com/meridian-crm/meridian-crm/internal/modules"
)

func fullAccess() Permission {
	return Permission{Viewable: true, CanAdd: true, CanEdit: true, CanDelete: true}
}

func TestResolveSuperAdminTotality(t *testing.T) {
	// Stored grants are irrelevant for the super admin, including a claim
	// that would otherwise be forbidden.
	set := Resolve(Principal{Role: RoleSuperAdmin}, []modules.ID{"finances"}, []GrantRecord{{Module: modules.Cases, CanDelete: true}})
	if len(set) != len(modules.All()) {
		t.Fatalf("result must be total over the catalog, got %d entries", len(set))
	}
	for _, id := range modules.All() {
		if set[id] != fullAccess() {
			t.Fatalf("module %q should be full access for super admin, got %+v", id, set[id])
		}
	}
}

func TestResolveUsersLockout(t *testing.T) {
	grants := []GrantRecord{{Module: modules.Users, CanAdd: true, CanEdit: true, CanDelete: true}}
	legacy := []modules.ID{modules.Users}
	for _, role := range []Role{RoleAdmin, RoleTeacher, RoleStaff, "director"} {
		set := Resolve(Principal{Role: role}, legacy, grants)
		if set[modules.Users] != (Permission{}) {
			t.Fatalf("role %q must never access users, got %+v", role, set[modules.Users])
		}
	}
}

func TestResolveDashboardFloor(t *testing.T) {
	set := Resolve(Principal{Role: "nobody"}, nil, nil)
	if !set[modules.Dashboard].Viewable {
		t.Fatalf("dashboard must always be viewable")
	}
	if set[modules.Dashboard].CanAdd || set[modules.Dashboard].CanEdit || set[modules.Dashboard].CanDelete {
		t.Fatalf("dashboard floor grants no mutation rights")
	}
}

func TestResolveLegacyIsViewOnly(t *testing.T) {
	set := Resolve(Principal{Role: RoleStaff}, []modules.ID{modules.Cases}, nil)
	want := Permission{Viewable: true}
	if set[modules.Cases] != want {
		t.Fatalf("legacy membership is view-only, got %+v", set[modules.Cases])
	}
}

func TestResolveAliasEquivalence(t *testing.T) {
	withAlias := Resolve(Principal{Role: "custom"}, []modules.ID{"info-portal"}, nil)
	withCanonical := Resolve(Principal{Role: "custom"}, []modules.ID{modules.Info}, nil)
	if withAlias[modules.Info] != withCanonical[modules.Info] {
		t.Fatalf("alias and canonical legacy spellings must resolve identically")
	}
	if !withAlias[modules.Info].Viewable {
		t.Fatalf("info should be viewable via its alias")
	}
}

func TestResolveGrantFlags(t *testing.T) {
	grants := []GrantRecord{
		{Module: modules.Students, CanAdd: true, CanEdit: true},
		{Module: modules.Calendar}, // explicitly considered, view-only
	}
	set := Resolve(Principal{Role: RoleStaff}, nil, grants)
	if set[modules.Students] != (Permission{Viewable: true, CanAdd: true, CanEdit: true}) {
		t.Fatalf("unexpected students permission %+v", set[modules.Students])
	}
	if set[modules.Calendar] != (Permission{Viewable: true}) {
		t.Fatalf("all-false grant record still grants view, got %+v", set[modules.Calendar])
	}
	if set[modules.Leaves] != (Permission{}) {
		t.Fatalf("ungranted module must be all-false, got %+v", set[modules.Leaves])
	}
}

func TestResolveDependencyPropagation(t *testing.T) {
	grants := []GrantRecord{{Module: modules.TeacherAssignments, CanAdd: true, CanEdit: true, CanDelete: true}}
	set := Resolve(Principal{Role: RoleTeacher, Branch: "jakarta"}, []modules.ID{modules.TeacherAssignments}, grants)
	if set[modules.TeacherAssignments] != fullAccess() {
		t.Fatalf("unexpected teacher_assignments permission %+v", set[modules.TeacherAssignments])
	}
	if set[modules.Teachers] != (Permission{Viewable: true}) {
		t.Fatalf("teachers must become viewable, got %+v", set[modules.Teachers])
	}
}

func TestResolveDefaultsOnlyWhenEmpty(t *testing.T) {
	// Staff with no stored grants sees only the dashboard.
	set := Resolve(Principal{Role: RoleStaff}, nil, nil)
	for _, id := range modules.All() {
		wantViewable := id == modules.Dashboard
		if set[id].Viewable != wantViewable {
			t.Fatalf("staff visibility for %q = %v, want %v", id, set[id].Viewable, wantViewable)
		}
	}

	// Admin with no stored grants sees the full catalog minus users.
	set = Resolve(Principal{Role: RoleAdmin}, nil, nil)
	for _, id := range modules.All() {
		wantViewable := id != modules.Users
		if set[id].Viewable != wantViewable {
			t.Fatalf("admin visibility for %q = %v, want %v", id, set[id].Viewable, wantViewable)
		}
	}

	// Once anything explicit is stored the default floor no longer applies.
	set = Resolve(Principal{Role: RoleAdmin}, []modules.ID{modules.Cases}, nil)
	if set[modules.Students].Viewable {
		t.Fatalf("explicit grants replace the default floor")
	}
	if !set[modules.Cases].Viewable {
		t.Fatalf("legacy cases entry must stay viewable")
	}
}

func TestResolveUnknownRoleFailsClosed(t *testing.T) {
	set := Resolve(Principal{Role: "??!"}, nil, nil)
	for _, id := range modules.All() {
		if id == modules.Dashboard {
			continue
		}
		if set[id].Viewable {
			t.Fatalf("unknown role must not see %q", id)
		}
	}
}

func TestResolveTeacherScenario(t *testing.T) {
	// A teacher granted CRUD on teacher_assignments and nothing else.
	grants := []GrantRecord{{Module: modules.TeacherAssignments, CanAdd: true, CanEdit: true, CanDelete: true}}
	set := Resolve(Principal{Role: RoleTeacher}, []modules.ID{modules.TeacherAssignments, modules.Dashboard}, grants)

	if set[modules.TeacherAssignments] != fullAccess() {
		t.Fatalf("unexpected teacher_assignments %+v", set[modules.TeacherAssignments])
	}
	if set[modules.Teachers] != (Permission{Viewable: true}) {
		t.Fatalf("unexpected teachers %+v", set[modules.Teachers])
	}
	if !set[modules.Dashboard].Viewable {
		t.Fatalf("dashboard must be viewable")
	}
	for _, id := range []modules.ID{modules.Students, modules.Cases, modules.Users, modules.Reports} {
		if set[id] != (Permission{}) {
			t.Fatalf("module %q should be all-false, got %+v", id, set[id])
		}
	}
}
