package ratelimit

import (
	"context"
	"testing"

	"github.com/identity-console/console/internal/models"
)

func TestRelationViews_SortedByTenantThenGroup(t *testing.T) {
	store := newFakeStore()
	addTenant(store, "t-beta", "Beta", 0, 0, false)
	addTenant(store, "t-alpha", "Alpha", 0, 0, false)
	store.groups["g-zulu"] = models.RateLimitServiceGroup{ID: "g-zulu", Name: "Zulu"}
	store.groups["g-ag"] = models.RateLimitServiceGroup{ID: "g-ag", Name: "Alpha-Group"}
	store.rels = []models.TenantRateLimit{
		{TenantID: "t-beta", ServiceGroupID: "g-zulu", RateLimit: intPtr(10), RateLimitPeriodMinutes: intPtr(60)},
		{TenantID: "t-alpha", ServiceGroupID: "g-ag", RateLimit: intPtr(20), RateLimitPeriodMinutes: intPtr(60)},
	}

	views, err := newTestEngine(store).RelationViews(context.Background(), "", "")
	if err != nil {
		t.Fatalf("views: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
	if views[0].TenantName != "Alpha" || views[1].TenantName != "Beta" {
		t.Fatalf("expected Alpha before Beta, got %q then %q", views[0].TenantName, views[1].TenantName)
	}
	if views[0].ServiceGroupName != "Alpha-Group" {
		t.Fatalf("expected Alpha-Group for first row, got %q", views[0].ServiceGroupName)
	}
}

func TestRelationViews_TieBrokenByGroupName(t *testing.T) {
	store := newFakeStore()
	addTenant(store, "t1", "Acme", 0, 0, false)
	store.groups["g-b"] = models.RateLimitServiceGroup{ID: "g-b", Name: "bravo"}
	store.groups["g-a"] = models.RateLimitServiceGroup{ID: "g-a", Name: "Alpha"}
	store.rels = []models.TenantRateLimit{
		{TenantID: "t1", ServiceGroupID: "g-b"},
		{TenantID: "t1", ServiceGroupID: "g-a"},
	}

	views, err := newTestEngine(store).RelationViews(context.Background(), "", "")
	if err != nil {
		t.Fatalf("views: %v", err)
	}
	if views[0].ServiceGroupName != "Alpha" || views[1].ServiceGroupName != "bravo" {
		t.Fatalf("expected case-insensitive group ordering, got %q then %q",
			views[0].ServiceGroupName, views[1].ServiceGroupName)
	}
}

func TestRelationViews_DanglingReferenceYieldsEmptyName(t *testing.T) {
	store := newFakeStore()
	addTenant(store, "t1", "Acme", 0, 0, false)
	store.rels = []models.TenantRateLimit{
		{TenantID: "t1", ServiceGroupID: "gone"},
	}

	views, err := newTestEngine(store).RelationViews(context.Background(), "", "")
	if err != nil {
		t.Fatalf("expected dangling reference to be tolerated, got %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(views))
	}
	if views[0].ServiceGroupName != "" {
		t.Fatalf("expected empty group name, got %q", views[0].ServiceGroupName)
	}
}

func TestRelationViews_Filters(t *testing.T) {
	store := newFakeStore()
	addTenant(store, "t1", "Acme", 0, 0, false)
	addTenant(store, "t2", "Globex", 0, 0, false)
	store.groups["g1"] = models.RateLimitServiceGroup{ID: "g1", Name: "Gold"}
	store.groups["g2"] = models.RateLimitServiceGroup{ID: "g2", Name: "Silver"}
	store.rels = []models.TenantRateLimit{
		{TenantID: "t1", ServiceGroupID: "g1"},
		{TenantID: "t1", ServiceGroupID: "g2"},
		{TenantID: "t2", ServiceGroupID: "g1"},
	}
	engine := newTestEngine(store)

	byTenant, err := engine.RelationViews(context.Background(), "", "t1")
	if err != nil {
		t.Fatalf("views by tenant: %v", err)
	}
	if len(byTenant) != 2 {
		t.Fatalf("expected 2 rows for t1, got %d", len(byTenant))
	}

	byGroup, err := engine.RelationViews(context.Background(), "g1", "")
	if err != nil {
		t.Fatalf("views by group: %v", err)
	}
	if len(byGroup) != 2 {
		t.Fatalf("expected 2 rows for g1, got %d", len(byGroup))
	}

	both, err := engine.RelationViews(context.Background(), "g2", "t1")
	if err != nil {
		t.Fatalf("views by both: %v", err)
	}
	if len(both) != 1 || both[0].ServiceGroupID != "g2" {
		t.Fatalf("expected single g2 row for t1, got %+v", both)
	}
}
