// Package modules defines the fixed catalog of functional modules that are
// subject to visibility and mutation control.
package modules

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ID identifies a functional module by its canonical name.
type ID string

// Canonical module identifiers. The catalog is closed and defined at deploy
// time; it is never user-editable.
const (
	Dashboard          ID = "dashboard"
	Students           ID = "students"
	Services           ID = "services"
	Cases              ID = "cases"
	Calendar           ID = "calendar"
	Accounts           ID = "accounts"
	Universities       ID = "universities"
	Employees          ID = "employees"
	Teachers           ID = "teachers"
	TeacherAssignments ID = "teacher_assignments"
	Leaves             ID = "leaves"
	Messenger          ID = "messenger"
	Info               ID = "info"
	Reports            ID = "reports"
	Users              ID = "users"
)

var ordered = []ID{
	Dashboard,
	Students,
	Services,
	Cases,
	Calendar,
	Accounts,
	Universities,
	Employees,
	Teachers,
	TeacherAssignments,
	Leaves,
	Messenger,
	Info,
	Reports,
	Users,
}

// aliases maps retired identifiers to their canonical replacements. Persisted
// rows written by older releases still carry these spellings.
var aliases = map[ID]ID{
	"info-portal": Info,
	"finances":    Accounts,
}

var labels = map[ID]string{
	Dashboard:          "Dashboard",
	Students:           "Students",
	Services:           "Services",
	Cases:              "Cases",
	Calendar:           "Calendar",
	Accounts:           "Accounts",
	Universities:       "Universities",
	Employees:          "Employees",
	Teachers:           "Teachers",
	TeacherAssignments: "Teacher Assignments",
	Leaves:             "Leaves",
	Messenger:          "Messenger",
	Info:               "Info Portal",
	Reports:            "Reports",
	Users:              "User Management",
}

// dependencies maps a dependent module to the parent module that must stay
// visible whenever the dependent carries any grant.
var dependencies = map[ID]ID{
	TeacherAssignments: Teachers,
}

var catalog = func() map[ID]struct{} {
	set := make(map[ID]struct{}, len(ordered))
	for _, id := range ordered {
		set[id] = struct{}{}
	}
	return set
}()

// Canonicalize collapses alias spellings to their canonical identifier.
// Unknown identifiers canonicalize to themselves so that rows written by a
// newer release survive a rollback, but they are never part of All().
func Canonicalize(id ID) ID {
	id = ID(strings.TrimSpace(strings.ToLower(string(id))))
	if canonical, ok := aliases[id]; ok {
		return canonical
	}
	return id
}

// All returns the catalog in display order.
func All() []ID {
	out := make([]ID, len(ordered))
	copy(out, ordered)
	return out
}

// Known reports whether id (after canonicalization) belongs to the catalog.
func Known(id ID) bool {
	_, ok := catalog[Canonicalize(id)]
	return ok
}

// Label returns the display label for a module.
func Label(id ID) string {
	id = Canonicalize(id)
	if label, ok := labels[id]; ok {
		return label
	}
	return cases.Title(language.English).String(strings.ReplaceAll(string(id), "_", " "))
}

// Dependencies returns the dependent-to-parent visibility table. Adding an
// edge here is all it takes to introduce a new implied-visibility rule.
func Dependencies() map[ID]ID {
	out := make(map[ID]ID, len(dependencies))
	for child, parent := range dependencies {
		out[child] = parent
	}
	return out
}
