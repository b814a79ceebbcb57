package users

import (
	"time"

	"github.com/meridian-crm/meridian-crm/internal/rbac"
)

// User represents a managed account. Accounts are never physically deleted;
// deactivation is a status change.
type User struct {
	ID        int64
	Email     string
	Name      string
	Role      rbac.Role
	Branch    string
	Status    rbac.Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Principal converts the stored row into the shape consumed by permission
// resolution.
func (u User) Principal() rbac.Principal {
	return rbac.Principal{
		ID:     u.ID,
		Email:  u.Email,
		Role:   u.Role,
		Branch: u.Branch,
		Status: u.Status,
	}
}

// ReportingEdge links a subordinate to one of their supervisors. The
// hierarchy is informational only and never consulted by authorization.
type ReportingEdge struct {
	UserID       int64
	SupervisorID int64
	CreatedAt    time.Time
}
