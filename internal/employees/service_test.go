package employees

import (
	"context"
	"errors"
	"testing"

	"github.com/meridian-crm/meridian-crm/internal/rbac"
)

type mockRepo struct {
	list []Employee
	err  error
}

func (m *mockRepo) ListEmployees(ctx context.Context) ([]Employee, error) {
	return m.list, m.err
}

func roster() []Employee {
	return []Employee{
		{ID: 1, Name: "Sari Wulandari", Branch: "jakarta"},
		{ID: 2, Name: "Budi Hartono", Branch: "bandung"},
		{ID: 3, Name: "Dewi Lestari", Branch: "jakarta"},
	}
}

func TestListForRestrictedSeesOwnBranch(t *testing.T) {
	svc := NewService(&mockRepo{list: roster()})
	got, err := svc.ListFor(context.Background(), rbac.Principal{Role: rbac.RoleStaff, Branch: "jakarta"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 jakarta entries, got %d", len(got))
	}
	for _, e := range got {
		if e.Branch != "jakarta" {
			t.Fatalf("entry %d leaked from branch %q", e.ID, e.Branch)
		}
	}
}

func TestListForUnrestrictedSeesEverything(t *testing.T) {
	svc := NewService(&mockRepo{list: roster()})
	got, err := svc.ListFor(context.Background(), rbac.Principal{Role: rbac.RoleSuperAdmin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected the full roster, got %d entries", len(got))
	}
}

func TestListForBranchlessGetsEmptyRoster(t *testing.T) {
	svc := NewService(&mockRepo{list: roster()})
	got, err := svc.ListFor(context.Background(), rbac.Principal{Role: rbac.RoleStaff})
	if err != nil {
		t.Fatalf("branchless principal must not error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("branchless principal must see nothing, got %d entries", len(got))
	}
}

func TestListForRepoErrorPropagates(t *testing.T) {
	wantErr := errors.New("pg down")
	svc := NewService(&mockRepo{err: wantErr})
	if _, err := svc.ListFor(context.Background(), rbac.Principal{Role: rbac.RoleStaff, Branch: "jakarta"}); !errors.Is(err, wantErr) {
		t.Fatalf("store failure must surface, got %v", err)
	}
}
