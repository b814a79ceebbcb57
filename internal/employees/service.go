package employees

import (
	"context"

	"github.com/meridian-crm/meridian-crm/internal/rbac"
)

// RepositoryPort defines data access methods for the roster.
type RepositoryPort interface {
	ListEmployees(ctx context.Context) ([]Employee, error)
}

// Service applies branch scoping on top of the roster store.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListFor returns the roster visible to the given principal. A restricted
// principal without a branch gets an empty roster, not an error: that is an
// expected state for a freshly created account.
func (s *Service) ListFor(ctx context.Context, principal rbac.Principal) ([]Employee, error) {
	list, err := s.repo.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	inScope := rbac.ScopePredicate(principal)
	scoped := make([]Employee, 0, len(list))
	for _, e := range list {
		if inScope(e.Branch) {
			scoped = append(scoped, e)
		}
	}
	return scoped, nil
}
