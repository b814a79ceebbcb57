package rbac

import (
	"fmt"
	"strings"

	"github.com/meridian-crm/meridian-crm/internal/modules"
)

// Role is a named permission grouping. The enumeration below is fixed, but
// arbitrary custom role strings are accepted and treated as restricted.
type Role string

// Built-in roles.
const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleTeacher    Role = "teacher"
	RoleStaff      Role = "staff"
)

// NormalizeRole collapses spelling variants of the built-in roles. Anything
// unrecognized is returned as-is and treated as a restricted custom role.
func NormalizeRole(role Role) Role {
	normalized := strings.ToLower(strings.TrimSpace(string(role)))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")
	if normalized == "superadmin" {
		return RoleSuperAdmin
	}
	return Role(normalized)
}

// Status describes the lifecycle state of a principal.
type Status string

// Principal statuses. Records are never physically deleted; deactivation is
// a status change.
const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusDormant  Status = "dormant"
)

// Principal describes the authenticated actor as supplied by the identity
// boundary: stable identifier plus role, branch and status claims.
type Principal struct {
	ID     int64
	Email  string
	Role   Role
	Branch string
	Status Status
}

// GrantRecord is the modern per-module grant shape: three independent
// mutation flags. A record with all flags false still means "explicitly
// considered, view-only".
type GrantRecord struct {
	Module    modules.ID
	CanAdd    bool
	CanEdit   bool
	CanDelete bool
}

// Any reports whether at least one mutation flag is set.
func (g GrantRecord) Any() bool {
	return g.CanAdd || g.CanEdit || g.CanDelete
}

// Permission is the resolved access for a single module.
type Permission struct {
	Viewable  bool `json:"viewable"`
	CanAdd    bool `json:"can_add"`
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

// EffectiveSet is the resolved access map for a principal. It is total over
// the catalog: modules the principal cannot see are present with all fields
// false, so callers never branch on absence.
type EffectiveSet map[modules.ID]Permission

// AccessLevel is the per-module selection offered by the administrative
// grant editor.
type AccessLevel string

// The nine access levels.
const (
	LevelNone       AccessLevel = "none"
	LevelView       AccessLevel = "view"
	LevelAdd        AccessLevel = "add"
	LevelEdit       AccessLevel = "edit"
	LevelDelete     AccessLevel = "delete"
	LevelAddEdit    AccessLevel = "add_edit"
	LevelAddDelete  AccessLevel = "add_delete"
	LevelEditDelete AccessLevel = "edit_delete"
	LevelCRUD       AccessLevel = "crud"
)

var levelFlags = map[AccessLevel][3]bool{
	LevelNone:       {false, false, false},
	LevelView:       {false, false, false},
	LevelAdd:        {true, false, false},
	LevelEdit:       {false, true, false},
	LevelDelete:     {false, false, true},
	LevelAddEdit:    {true, true, false},
	LevelAddDelete:  {true, false, true},
	LevelEditDelete: {false, true, true},
	LevelCRUD:       {true, true, true},
}

// ParseAccessLevel validates a raw level string.
func ParseAccessLevel(raw string) (AccessLevel, error) {
	level := AccessLevel(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := levelFlags[level]; !ok {
		return "", &InputError{Field: "level", Reason: fmt.Sprintf("unknown access level %q", raw)}
	}
	return level, nil
}

// Flags expands a level into its add/edit/delete booleans.
func (l AccessLevel) Flags() (canAdd, canEdit, canDelete bool) {
	flags := levelFlags[l]
	return flags[0], flags[1], flags[2]
}

// InputError reports a malformed save request: an unknown module id or an
// access level outside the defined set. Rejections are surfaced, never
// silently coerced to none.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return "rbac: invalid " + e.Field + ": " + e.Reason
}
