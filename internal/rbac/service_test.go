package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-crm/meridian-crm/internal/modules"
)

type mockStore struct {
	legacy       []modules.ID
	grants       []GrantRecord
	loadErr      error
	loadCalls    int
	replaceErr   error
	replaceCalls int
	savedLegacy  []modules.ID
	savedGrants  []GrantRecord
}

func (m *mockStore) LoadGrants(ctx context.Context, userID int64) ([]modules.ID, []GrantRecord, error) {
	m.loadCalls++
	return m.legacy, m.grants, m.loadErr
}

func (m *mockStore) ReplaceGrants(ctx context.Context, userID int64, legacy []modules.ID, grants []GrantRecord) error {
	m.replaceCalls++
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.savedLegacy = legacy
	m.savedGrants = grants
	m.legacy = legacy
	m.grants = grants
	return nil
}

type mockPrincipals struct {
	principal Principal
	err       error
}

func (m *mockPrincipals) PrincipalByID(ctx context.Context, id int64) (Principal, error) {
	return m.principal, m.err
}

type mockNotifier struct {
	calls   int
	userIDs []int64
	err     error
}

func (m *mockNotifier) GrantsChanged(ctx context.Context, userID int64) error {
	m.calls++
	m.userIDs = append(m.userIDs, userID)
	return m.err
}

func newTestService(t *testing.T, store GrantStore, principals PrincipalSource, notifier Notifier) (*Service, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := NewService(nil, store, principals, client, notifier, nil)
	return svc, func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestEffectiveCachesResolution(t *testing.T) {
	store := &mockStore{
		legacy: []modules.ID{modules.Cases},
		grants: []GrantRecord{{Module: modules.Cases, CanEdit: true}},
	}
	svc, cleanup := newTestService(t, store, nil, nil)
	defer cleanup()

	ctx := context.Background()
	principal := Principal{ID: 42, Role: RoleStaff}

	first, err := svc.Effective(ctx, principal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first[modules.Cases] != (Permission{Viewable: true, CanEdit: true}) {
		t.Fatalf("unexpected cases permission %+v", first[modules.Cases])
	}
	if store.loadCalls != 1 {
		t.Fatalf("expected one store read, got %d", store.loadCalls)
	}

	second, err := svc.Effective(ctx, principal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.loadCalls != 1 {
		t.Fatalf("second read should be served from cache, store reads = %d", store.loadCalls)
	}
	if second[modules.Cases] != first[modules.Cases] {
		t.Fatalf("cached result diverged: %+v vs %+v", second[modules.Cases], first[modules.Cases])
	}
}

func TestEffectiveStoreErrorPropagates(t *testing.T) {
	wantErr := errors.New("pg down")
	store := &mockStore{loadErr: wantErr}
	svc, cleanup := newTestService(t, store, nil, nil)
	defer cleanup()

	if _, err := svc.Effective(context.Background(), Principal{ID: 1, Role: RoleStaff}); !errors.Is(err, wantErr) {
		t.Fatalf("store failure must surface, got %v", err)
	}
}

func TestSaveGrantsInvalidatesAndNotifies(t *testing.T) {
	store := &mockStore{}
	notifier := &mockNotifier{}
	svc, cleanup := newTestService(t, store, nil, notifier)
	defer cleanup()

	ctx := context.Background()
	principal := Principal{ID: 7, Role: RoleStaff}

	// Warm the cache.
	if _, err := svc.Effective(ctx, principal); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	levels := map[modules.ID]AccessLevel{modules.Students: LevelAddEdit}
	if err := svc.SaveGrants(ctx, principal.ID, principal.Role, levels); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if store.replaceCalls != 1 {
		t.Fatalf("expected one replace, got %d", store.replaceCalls)
	}
	if notifier.calls != 1 || notifier.userIDs[0] != 7 {
		t.Fatalf("expected one change notification for user 7, got %+v", notifier.userIDs)
	}

	// The next read must hit the store again and see the new grants.
	set, err := svc.Effective(ctx, principal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.loadCalls != 2 {
		t.Fatalf("save must drop the cached set, store reads = %d", store.loadCalls)
	}
	if set[modules.Students] != (Permission{Viewable: true, CanAdd: true, CanEdit: true}) {
		t.Fatalf("unexpected students permission %+v", set[modules.Students])
	}
}

func TestSaveGrantsReplacesWholeSelection(t *testing.T) {
	store := &mockStore{}
	svc, cleanup := newTestService(t, store, nil, nil)
	defer cleanup()

	ctx := context.Background()
	first := map[modules.ID]AccessLevel{
		modules.Students: LevelCRUD,
		modules.Cases:    LevelAddEdit,
	}
	if err := svc.SaveGrants(ctx, 7, RoleStaff, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The second save omits students entirely and narrows cases to view;
	// nothing from the first selection may survive it.
	second := map[modules.ID]AccessLevel{modules.Cases: LevelView}
	if err := svc.SaveGrants(ctx, 7, RoleStaff, second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, id := range store.savedLegacy {
		if id == modules.Students {
			t.Fatalf("omitted module survived the replace, legacy = %v", store.savedLegacy)
		}
	}
	for _, grant := range store.savedGrants {
		if grant.Module == modules.Students {
			t.Fatalf("omitted module survived the replace, grants = %v", store.savedGrants)
		}
		if grant.Module == modules.Cases && grant.Any() {
			t.Fatalf("narrowed module kept its old flags: %+v", grant)
		}
	}

	set, err := svc.Effective(ctx, Principal{ID: 7, Role: RoleStaff})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set[modules.Students] != (Permission{}) {
		t.Fatalf("omitted module still resolves: %+v", set[modules.Students])
	}
	if set[modules.Cases] != (Permission{Viewable: true}) {
		t.Fatalf("narrowed module did not resolve view-only: %+v", set[modules.Cases])
	}
}

func TestSaveGrantsRejectsDuplicateAfterAliasCollapse(t *testing.T) {
	store := &mockStore{}
	svc, cleanup := newTestService(t, store, nil, nil)
	defer cleanup()

	levels := map[modules.ID]AccessLevel{
		modules.Info:  LevelView,
		"info-portal": LevelCRUD,
	}
	err := svc.SaveGrants(context.Background(), 9, RoleStaff, levels)
	var input *InputError
	if !errors.As(err, &input) {
		t.Fatalf("expected InputError for a colliding alias, got %v", err)
	}
	if store.replaceCalls != 0 {
		t.Fatalf("colliding selection must never reach the store")
	}
}

func TestSaveGrantsSucceedsWhenCacheUnreachable(t *testing.T) {
	store := &mockStore{}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	svc := NewService(nil, store, nil, client, nil, nil)

	// The replace has committed by the time invalidation runs; a cache
	// outage must not turn the applied save into a reported failure.
	mr.Close()
	err := svc.SaveGrants(context.Background(), 3, RoleStaff, map[modules.ID]AccessLevel{modules.Cases: LevelView})
	if err != nil {
		t.Fatalf("cache outage must not fail the save: %v", err)
	}
	if store.replaceCalls != 1 {
		t.Fatalf("expected the replace to happen, got %d calls", store.replaceCalls)
	}
}

func TestSaveGrantsNotifierFailureIsNonFatal(t *testing.T) {
	store := &mockStore{}
	notifier := &mockNotifier{err: errors.New("broker gone")}
	svc, cleanup := newTestService(t, store, nil, notifier)
	defer cleanup()

	err := svc.SaveGrants(context.Background(), 3, RoleStaff, map[modules.ID]AccessLevel{modules.Cases: LevelView})
	if err != nil {
		t.Fatalf("notification failure must not fail the save: %v", err)
	}
	if store.replaceCalls != 1 {
		t.Fatalf("expected the replace to happen, got %d calls", store.replaceCalls)
	}
}

func TestSaveGrantsStoreErrorSkipsNotification(t *testing.T) {
	wantErr := errors.New("tx aborted")
	store := &mockStore{replaceErr: wantErr}
	notifier := &mockNotifier{}
	svc, cleanup := newTestService(t, store, nil, notifier)
	defer cleanup()

	if err := svc.SaveGrants(context.Background(), 3, RoleStaff, map[modules.ID]AccessLevel{modules.Cases: LevelView}); !errors.Is(err, wantErr) {
		t.Fatalf("store failure must surface, got %v", err)
	}
	if notifier.calls != 0 {
		t.Fatalf("failed save must not announce a change")
	}
}

func TestSaveGrantsRejectsUnknownModule(t *testing.T) {
	store := &mockStore{}
	svc, cleanup := newTestService(t, store, nil, nil)
	defer cleanup()

	err := svc.SaveGrants(context.Background(), 9, RoleStaff, map[modules.ID]AccessLevel{"invoicing": LevelView})
	var input *InputError
	if !errors.As(err, &input) {
		t.Fatalf("expected InputError, got %v", err)
	}
	if store.replaceCalls != 0 {
		t.Fatalf("invalid selection must never reach the store")
	}
}

func TestSaveGrantsRejectsUnknownLevel(t *testing.T) {
	svc, cleanup := newTestService(t, &mockStore{}, nil, nil)
	defer cleanup()

	err := svc.SaveGrants(context.Background(), 9, RoleStaff, map[modules.ID]AccessLevel{modules.Cases: "full"})
	var input *InputError
	if !errors.As(err, &input) {
		t.Fatalf("expected InputError, got %v", err)
	}
}

func TestSaveGrantsPersistsDashboardFloor(t *testing.T) {
	store := &mockStore{}
	svc, cleanup := newTestService(t, store, nil, nil)
	defer cleanup()

	if err := svc.SaveGrants(context.Background(), 5, RoleStaff, map[modules.ID]AccessLevel{modules.Cases: LevelCRUD}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, id := range store.savedLegacy {
		if id == modules.Dashboard {
			found = true
		}
	}
	if !found {
		t.Fatalf("dashboard must be persisted with every save, legacy = %v", store.savedLegacy)
	}
}

func TestSaveGrantsPersistsDependencyParent(t *testing.T) {
	store := &mockStore{}
	svc, cleanup := newTestService(t, store, nil, nil)
	defer cleanup()

	levels := map[modules.ID]AccessLevel{modules.TeacherAssignments: LevelCRUD}
	if err := svc.SaveGrants(context.Background(), 5, RoleStaff, levels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, id := range store.savedLegacy {
		if id == modules.Teachers {
			found = true
		}
	}
	if !found {
		t.Fatalf("teachers must be kept visible alongside teacher_assignments, legacy = %v", store.savedLegacy)
	}
}

func TestSaveGrantsSuperAdminIgnoresSelection(t *testing.T) {
	store := &mockStore{}
	svc, cleanup := newTestService(t, store, nil, nil)
	defer cleanup()

	// The selection, including the attempt to zero everything out, is moot.
	levels := map[modules.ID]AccessLevel{modules.Cases: LevelNone}
	if err := svc.SaveGrants(context.Background(), 1, RoleSuperAdmin, levels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.savedGrants) != len(modules.All()) {
		t.Fatalf("super admin saves the full catalog, got %d grants", len(store.savedGrants))
	}
	for _, grant := range store.savedGrants {
		if !grant.CanAdd || !grant.CanEdit || !grant.CanDelete {
			t.Fatalf("super admin grant for %q is not full access: %+v", grant.Module, grant)
		}
	}
}

func TestEffectiveByIDUsesPrincipalSource(t *testing.T) {
	store := &mockStore{legacy: []modules.ID{modules.Reports}}
	principals := &mockPrincipals{principal: Principal{ID: 11, Role: RoleStaff, Status: StatusActive}}
	svc, cleanup := newTestService(t, store, principals, nil)
	defer cleanup()

	set, err := svc.EffectiveByID(context.Background(), 11)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !set[modules.Reports].Viewable {
		t.Fatalf("expected reports to be viewable, got %+v", set[modules.Reports])
	}
}

func TestRefreshRewritesCache(t *testing.T) {
	store := &mockStore{legacy: []modules.ID{modules.Calendar}}
	principals := &mockPrincipals{principal: Principal{ID: 21, Role: RoleStaff, Status: StatusActive}}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	svc := NewService(nil, store, principals, client, nil, nil)

	ctx := context.Background()
	if err := svc.Refresh(ctx, 21); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payload, err := client.Get(ctx, "meridian:perms:21").Bytes()
	if err != nil {
		t.Fatalf("expected a cached entry: %v", err)
	}
	var cached EffectiveSet
	if err := json.Unmarshal(payload, &cached); err != nil {
		t.Fatalf("cached payload must decode: %v", err)
	}
	if !cached[modules.Calendar].Viewable {
		t.Fatalf("refreshed cache must reflect the stored grants, got %+v", cached[modules.Calendar])
	}
}
