package employees

import "time"

// Employee is a personnel roster entry. Rosters are branch-scoped: a
// restricted principal only ever sees entries from their own branch.
type Employee struct {
	ID        int64
	Name      string
	Email     string
	Title     string
	Branch    string
	CreatedAt time.Time
}
