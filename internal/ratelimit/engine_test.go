package ratelimit

import (
	"context"
	"errors"
	"testing"

	"github.com/identity-console/console/internal/models"
)

// fakeStore is an in-memory implementation of the three repositories.
type fakeStore struct {
	tenants map[string]models.Tenant
	groups  map[string]models.RateLimitServiceGroup
	rels    []models.TenantRateLimit
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tenants: map[string]models.Tenant{},
		groups:  map[string]models.RateLimitServiceGroup{},
	}
}

func (f *fakeStore) FindTenantByID(_ context.Context, id string) (*models.Tenant, error) {
	if tenant, ok := f.tenants[id]; ok {
		return &tenant, nil
	}
	return nil, nil
}

func (f *fakeStore) FindTenantsByIDs(_ context.Context, ids []string) ([]models.Tenant, error) {
	out := make([]models.Tenant, 0, len(ids))
	for _, id := range ids {
		if tenant, ok := f.tenants[id]; ok {
			out = append(out, tenant)
		}
	}
	return out, nil
}

func (f *fakeStore) FindServiceGroupByID(_ context.Context, id string) (*models.RateLimitServiceGroup, error) {
	if group, ok := f.groups[id]; ok {
		return &group, nil
	}
	return nil, nil
}

func (f *fakeStore) FindServiceGroupsByIDs(_ context.Context, ids []string) ([]models.RateLimitServiceGroup, error) {
	out := make([]models.RateLimitServiceGroup, 0, len(ids))
	for _, id := range ids {
		if group, ok := f.groups[id]; ok {
			out = append(out, group)
		}
	}
	return out, nil
}

func (f *fakeStore) ListServiceGroups(_ context.Context) ([]models.RateLimitServiceGroup, error) {
	out := make([]models.RateLimitServiceGroup, 0, len(f.groups))
	for _, group := range f.groups {
		out = append(out, group)
	}
	return out, nil
}

func (f *fakeStore) InsertServiceGroup(_ context.Context, group *models.RateLimitServiceGroup) error {
	f.groups[group.ID] = *group
	return nil
}

func (f *fakeStore) UpdateServiceGroup(_ context.Context, group *models.RateLimitServiceGroup) error {
	f.groups[group.ID] = *group
	return nil
}

func (f *fakeStore) DeleteServiceGroup(_ context.Context, id string) error {
	delete(f.groups, id)
	return nil
}

func (f *fakeStore) RelationsByTenant(_ context.Context, tenantID string) ([]models.TenantRateLimit, error) {
	var out []models.TenantRateLimit
	for _, rel := range f.rels {
		if rel.TenantID == tenantID {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (f *fakeStore) RelationsByServiceGroup(_ context.Context, serviceGroupID string) ([]models.TenantRateLimit, error) {
	var out []models.TenantRateLimit
	for _, rel := range f.rels {
		if rel.ServiceGroupID == serviceGroupID {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (f *fakeStore) AllRelations(_ context.Context) ([]models.TenantRateLimit, error) {
	return append([]models.TenantRateLimit(nil), f.rels...), nil
}

func (f *fakeStore) InsertRelation(_ context.Context, rel *models.TenantRateLimit) error {
	f.rels = append(f.rels, *rel)
	return nil
}

func (f *fakeStore) UpdateRelation(_ context.Context, rel *models.TenantRateLimit) error {
	for i := range f.rels {
		if f.rels[i].TenantID == rel.TenantID && f.rels[i].ServiceGroupID == rel.ServiceGroupID {
			f.rels[i] = *rel
			return nil
		}
	}
	return errors.New("fake: relation missing")
}

func (f *fakeStore) DeleteRelation(_ context.Context, tenantID, serviceGroupID string) (bool, error) {
	for i := range f.rels {
		if f.rels[i].TenantID == tenantID && f.rels[i].ServiceGroupID == serviceGroupID {
			f.rels = append(f.rels[:i], f.rels[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func intPtr(v int) *int { return &v }

func newTestEngine(store *fakeStore) *Engine {
	return NewEngine(store, store, store)
}

func addTenant(store *fakeStore, id, name string, ceiling, periodMinutes int, unlimited bool) {
	tenant := models.Tenant{ID: id, Name: name, AllowUnlimitedRate: unlimited}
	if ceiling > 0 {
		tenant.DefaultRateLimit = intPtr(ceiling)
	}
	if periodMinutes > 0 {
		tenant.DefaultRateLimitPeriodMinutes = intPtr(periodMinutes)
	}
	store.tenants[id] = tenant
}

func TestEngineAssign_TenantNotFound(t *testing.T) {
	store := newFakeStore()
	store.groups["g1"] = models.RateLimitServiceGroup{ID: "g1", Name: "Gold"}

	_, err := newTestEngine(store).Assign(context.Background(), "missing", "g1", false, 10, 60)
	if !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
}

func TestEngineAssign_ServiceGroupNotFound(t *testing.T) {
	store := newFakeStore()
	addTenant(store, "t1", "Acme", 100, 60, false)

	_, err := newTestEngine(store).Assign(context.Background(), "t1", "missing", false, 10, 60)
	if !errors.Is(err, ErrServiceGroupNotFound) {
		t.Fatalf("expected ErrServiceGroupNotFound, got %v", err)
	}
}

func TestEngineAssign_DuplicateRejected(t *testing.T) {
	store := newFakeStore()
	addTenant(store, "t1", "Acme", 0, 0, false)
	store.groups["g1"] = models.RateLimitServiceGroup{ID: "g1", Name: "Gold"}
	engine := newTestEngine(store)

	if _, err := engine.Assign(context.Background(), "t1", "g1", false, 10, 60); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	if _, err := engine.Assign(context.Background(), "t1", "g1", false, 20, 60); !errors.Is(err, ErrDuplicateAllocation) {
		t.Fatalf("expected ErrDuplicateAllocation, got %v", err)
	}
	if len(store.rels) != 1 {
		t.Fatalf("expected exactly 1 relation in store, got %d", len(store.rels))
	}
}

func TestEngineAssign_CeilingEnforced(t *testing.T) {
	store := newFakeStore()
	addTenant(store, "t1", "Acme", 100, 60, false)
	store.groups["g1"] = models.RateLimitServiceGroup{ID: "g1", Name: "Gold"}
	store.groups["g2"] = models.RateLimitServiceGroup{ID: "g2", Name: "Silver"}
	engine := newTestEngine(store)

	if _, err := engine.Assign(context.Background(), "t1", "g1", false, 60, 60); err != nil {
		t.Fatalf("first assign: %v", err)
	}

	_, err := engine.Assign(context.Background(), "t1", "g2", false, 50, 60)
	if !errors.Is(err, ErrAggregateLimitExceeded) {
		t.Fatalf("expected ErrAggregateLimitExceeded, got %v", err)
	}
	var aggErr *AggregateLimitError
	if !errors.As(err, &aggErr) {
		t.Fatalf("expected *AggregateLimitError, got %T", err)
	}
	if aggErr.CurrentTotal != 60 || aggErr.Proposed != 50 || aggErr.Ceiling != 100 {
		t.Fatalf("unexpected detail: %+v", aggErr)
	}

	// 60 + 40 meets the ceiling exactly and must pass.
	if _, err := engine.Assign(context.Background(), "t1", "g2", false, 40, 60); err != nil {
		t.Fatalf("assign at exact ceiling: %v", err)
	}
}

func TestEngineAssign_CeilingUsesRequestedValue(t *testing.T) {
	store := newFakeStore()
	addTenant(store, "t1", "Acme", 100, 60, false)
	store.groups["g1"] = models.RateLimitServiceGroup{ID: "g1", Name: "Gold"}

	// 2_000_000 clamps to 15, which would fit, but the check gates the
	// caller's requested value before clamping.
	_, err := newTestEngine(store).Assign(context.Background(), "t1", "g1", false, 2_000_000, 60)
	if !errors.Is(err, ErrAggregateLimitExceeded) {
		t.Fatalf("expected ErrAggregateLimitExceeded, got %v", err)
	}
}

func TestEngineAssign_TenantUnlimitedSkipsCeiling(t *testing.T) {
	store := newFakeStore()
	addTenant(store, "t1", "Acme", 100, 60, true)
	store.groups["g1"] = models.RateLimitServiceGroup{ID: "g1", Name: "Gold"}

	if _, err := newTestEngine(store).Assign(context.Background(), "t1", "g1", false, 999, 30); err != nil {
		t.Fatalf("expected unlimited tenant to bypass ceiling, got %v", err)
	}
}

func TestEngineAssign_UnlimitedAllocationSkipsCeiling(t *testing.T) {
	store := newFakeStore()
	addTenant(store, "t1", "Acme", 100, 60, false)
	store.groups["g1"] = models.RateLimitServiceGroup{ID: "g1", Name: "Gold"}

	if _, err := newTestEngine(store).Assign(context.Background(), "t1", "g1", true, 999, 30); err != nil {
		t.Fatalf("expected unlimited allocation to bypass ceiling, got %v", err)
	}
}

func TestEngineAssign_PeriodMismatch(t *testing.T) {
	store := newFakeStore()
	addTenant(store, "t1", "Acme", 100, 60, false)
	store.groups["g1"] = models.RateLimitServiceGroup{ID: "g1", Name: "Gold"}

	_, err := newTestEngine(store).Assign(context.Background(), "t1", "g1", false, 10, 30)
	if !errors.Is(err, ErrPeriodMismatch) {
		t.Fatalf("expected ErrPeriodMismatch, got %v", err)
	}
}

func TestEngineAssign_ClampsStoredValues(t *testing.T) {
	store := newFakeStore()
	addTenant(store, "t1", "Acme", 0, 0, false)
	store.groups["g1"] = models.RateLimitServiceGroup{ID: "g1", Name: "Gold"}

	rel, err := newTestEngine(store).Assign(context.Background(), "t1", "g1", false, -5, 99_999)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if rel.RateLimit == nil || *rel.RateLimit != 15 {
		t.Fatalf("expected clamped limit 15, got %v", rel.RateLimit)
	}
	if rel.RateLimitPeriodMinutes == nil || *rel.RateLimitPeriodMinutes != DefaultRateLimitPeriodMinutes {
		t.Fatalf("expected clamped period %d, got %v", DefaultRateLimitPeriodMinutes, rel.RateLimitPeriodMinutes)
	}
}

func TestEngineAssign_RoundTrip(t *testing.T) {
	store := newFakeStore()
	addTenant(store, "t1", "Acme", 0, 0, false)
	store.groups["g1"] = models.RateLimitServiceGroup{ID: "g1", Name: "Gold"}
	engine := newTestEngine(store)

	if _, err := engine.Assign(context.Background(), "t1", "g1", false, 500, 60); err != nil {
		t.Fatalf("assign: %v", err)
	}
	rels, errRels := engine.RelationsForTenant(context.Background(), "t1")
	if errRels != nil {
		t.Fatalf("relations: %v", errRels)
	}
	if len(rels) != 1 {
		t.Fatalf("expected 1 relation, got %d", len(rels))
	}
	if rels[0].ServiceGroupID != "g1" || rels[0].RateLimit == nil || *rels[0].RateLimit != 500 {
		t.Fatalf("unexpected relation: %+v", rels[0])
	}
}

func TestEngineUpdate_NotFound(t *testing.T) {
	store := newFakeStore()
	addTenant(store, "t1", "Acme", 100, 60, false)

	_, err := newTestEngine(store).Update(context.Background(), "t1", "g1", false, 10, 60)
	if !errors.Is(err, ErrAllocationNotFound) {
		t.Fatalf("expected ErrAllocationNotFound, got %v", err)
	}
}

// The update ceiling check sums the full existing set, so the old value of
// the relation being replaced still counts against the new one. Updating a
// 60-limit allocation to 50 under a 100 ceiling therefore fails (60+50>100)
// even though the post-update total would be 50.
func TestEngineUpdate_CeilingCountsExistingSelf(t *testing.T) {
	store := newFakeStore()
	addTenant(store, "t1", "Acme", 100, 60, false)
	store.groups["g1"] = models.RateLimitServiceGroup{ID: "g1", Name: "Gold"}
	engine := newTestEngine(store)

	if _, err := engine.Assign(context.Background(), "t1", "g1", false, 60, 60); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := engine.Update(context.Background(), "t1", "g1", false, 50, 60); !errors.Is(err, ErrAggregateLimitExceeded) {
		t.Fatalf("expected ErrAggregateLimitExceeded, got %v", err)
	}
	// A value that fits even with the double count is accepted.
	rel, errUpdate := engine.Update(context.Background(), "t1", "g1", false, 30, 60)
	if errUpdate != nil {
		t.Fatalf("update: %v", errUpdate)
	}
	if rel.RateLimit == nil || *rel.RateLimit != 30 {
		t.Fatalf("expected updated limit 30, got %v", rel.RateLimit)
	}
}

func TestEngineUpdate_UnlimitedSkipsCeiling(t *testing.T) {
	store := newFakeStore()
	addTenant(store, "t1", "Acme", 100, 60, false)
	store.groups["g1"] = models.RateLimitServiceGroup{ID: "g1", Name: "Gold"}
	engine := newTestEngine(store)

	if _, err := engine.Assign(context.Background(), "t1", "g1", false, 60, 60); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := engine.Update(context.Background(), "t1", "g1", true, 999_999, 30); err != nil {
		t.Fatalf("expected unlimited update to pass, got %v", err)
	}
}

func TestEngineRemove(t *testing.T) {
	store := newFakeStore()
	addTenant(store, "t1", "Acme", 0, 0, false)
	store.groups["g1"] = models.RateLimitServiceGroup{ID: "g1", Name: "Gold"}
	engine := newTestEngine(store)

	if _, err := engine.Assign(context.Background(), "t1", "g1", false, 10, 60); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := engine.Remove(context.Background(), "t1", "g1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := engine.Remove(context.Background(), "t1", "g1"); !errors.Is(err, ErrAllocationNotFound) {
		t.Fatalf("expected ErrAllocationNotFound, got %v", err)
	}
	if len(store.rels) != 0 {
		t.Fatalf("expected empty store, got %d relations", len(store.rels))
	}
}
