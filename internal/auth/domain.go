package auth

import (
	"time"

	"github.com/meridian-crm/meridian-crm/internal/rbac"
)

// User represents an authenticated user account with the claims consumed by
// permission resolution.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         rbac.Role
	Branch       string
	Status       rbac.Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal converts the account into the resolver's principal shape.
func (u User) Principal() rbac.Principal {
	return rbac.Principal{
		ID:     u.ID,
		Email:  u.Email,
		Role:   u.Role,
		Branch: u.Branch,
		Status: u.Status,
	}
}
