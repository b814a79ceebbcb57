package users

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-crm/meridian-crm/internal/rbac"
)

// RepositoryPort defines data access methods for user accounts.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, email, name, passwordHash string, role rbac.Role, branch string) (User, error)
	UpdateUser(ctx context.Context, id int64, name string, role rbac.Role, branch string, status rbac.Status) (User, error)
	ListSupervisors(ctx context.Context, userID int64) ([]User, error)
	AssignSupervisor(ctx context.Context, userID, supervisorID int64) error
	RemoveSupervisor(ctx context.Context, userID, supervisorID int64) error
}

// Service handles account management business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns all accounts.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns a single account.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser registers a new account with a bcrypt password hash. The role
// is normalized before it is stored so policy lookups never see spelling
// variants.
func (s *Service) CreateUser(ctx context.Context, email, name, password string, role rbac.Role, branch string) (User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return User{}, errors.New("users: email required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.CreateUser(ctx, email, strings.TrimSpace(name), string(hash), rbac.NormalizeRole(role), strings.TrimSpace(branch))
}

// UpdateUser edits role, branch and status of an account. Deactivation goes
// through here as a status change; accounts are not deleted.
func (s *Service) UpdateUser(ctx context.Context, id int64, name string, role rbac.Role, branch string, status rbac.Status) (User, error) {
	switch status {
	case rbac.StatusActive, rbac.StatusInactive, rbac.StatusDormant:
	default:
		return User{}, errors.New("users: unknown status")
	}
	return s.repo.UpdateUser(ctx, id, strings.TrimSpace(name), rbac.NormalizeRole(role), strings.TrimSpace(branch), status)
}

// Supervisors returns the informational reporting hierarchy for a user.
func (s *Service) Supervisors(ctx context.Context, userID int64) ([]User, error) {
	return s.repo.ListSupervisors(ctx, userID)
}

// AssignSupervisor links a user to an additional supervisor.
func (s *Service) AssignSupervisor(ctx context.Context, userID, supervisorID int64) error {
	if userID == supervisorID {
		return errors.New("users: cannot supervise self")
	}
	return s.repo.AssignSupervisor(ctx, userID, supervisorID)
}

// RemoveSupervisor unlinks a supervisor from a user.
func (s *Service) RemoveSupervisor(ctx context.Context, userID, supervisorID int64) error {
	return s.repo.RemoveSupervisor(ctx, userID, supervisorID)
}

// PrincipalByID adapts the account store to the permission resolver's
// principal lookup.
func (s *Service) PrincipalByID(ctx context.Context, id int64) (rbac.Principal, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return rbac.Principal{}, err
	}
	return user.Principal(), nil
}
