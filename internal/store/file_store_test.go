package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/identity-console/console/internal/models"
	"github.com/identity-console/console/internal/ratelimit"
)

func intPtr(v int) *int { return &v }

func TestFileStore_ClampOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratelimits.json")
	st, errOpen := OpenFileStore(path)
	if errOpen != nil {
		t.Fatalf("open: %v", errOpen)
	}

	rel := &models.TenantRateLimit{
		TenantID:               "t1",
		ServiceGroupID:         "g1",
		RateLimit:              intPtr(2_000_000),
		RateLimitPeriodMinutes: intPtr(99_999),
	}
	if errInsert := st.InsertRelation(context.Background(), rel); errInsert != nil {
		t.Fatalf("insert: %v", errInsert)
	}

	rels, errRels := st.RelationsByTenant(context.Background(), "t1")
	if errRels != nil {
		t.Fatalf("relations: %v", errRels)
	}
	if len(rels) != 1 {
		t.Fatalf("expected 1 relation, got %d", len(rels))
	}
	if rels[0].RateLimit == nil || *rels[0].RateLimit != 15 {
		t.Fatalf("expected clamped limit 15, got %v", rels[0].RateLimit)
	}
	if rels[0].RateLimitPeriodMinutes == nil || *rels[0].RateLimitPeriodMinutes != ratelimit.DefaultRateLimitPeriodMinutes {
		t.Fatalf("expected clamped period, got %v", rels[0].RateLimitPeriodMinutes)
	}
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratelimits.json")
	st, errOpen := OpenFileStore(path)
	if errOpen != nil {
		t.Fatalf("open: %v", errOpen)
	}

	group := &models.RateLimitServiceGroup{ID: "g1", Name: "Gold", Description: "gold tier"}
	if errInsert := st.InsertServiceGroup(context.Background(), group); errInsert != nil {
		t.Fatalf("insert group: %v", errInsert)
	}
	rel := &models.TenantRateLimit{TenantID: "t1", ServiceGroupID: "g1", RateLimit: intPtr(100), RateLimitPeriodMinutes: intPtr(60)}
	if errInsert := st.InsertRelation(context.Background(), rel); errInsert != nil {
		t.Fatalf("insert relation: %v", errInsert)
	}

	reopened, errReopen := OpenFileStore(path)
	if errReopen != nil {
		t.Fatalf("reopen: %v", errReopen)
	}
	found, errFind := reopened.FindServiceGroupByID(context.Background(), "g1")
	if errFind != nil {
		t.Fatalf("find group: %v", errFind)
	}
	if found == nil || found.Name != "Gold" {
		t.Fatalf("expected persisted group, got %+v", found)
	}
	rels, errRels := reopened.RelationsByServiceGroup(context.Background(), "g1")
	if errRels != nil {
		t.Fatalf("relations: %v", errRels)
	}
	if len(rels) != 1 || rels[0].TenantID != "t1" {
		t.Fatalf("expected persisted relation, got %+v", rels)
	}
}

func TestFileStore_DuplicateRelationRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratelimits.json")
	st, errOpen := OpenFileStore(path)
	if errOpen != nil {
		t.Fatalf("open: %v", errOpen)
	}

	rel := &models.TenantRateLimit{TenantID: "t1", ServiceGroupID: "g1", RateLimit: intPtr(10), RateLimitPeriodMinutes: intPtr(60)}
	if errInsert := st.InsertRelation(context.Background(), rel); errInsert != nil {
		t.Fatalf("insert: %v", errInsert)
	}
	errDup := st.InsertRelation(context.Background(), rel)
	if !errors.Is(errDup, ratelimit.ErrDuplicateAllocation) {
		t.Fatalf("expected ErrDuplicateAllocation, got %v", errDup)
	}
}

func TestFileStore_DeleteCascade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratelimits.json")
	st, errOpen := OpenFileStore(path)
	if errOpen != nil {
		t.Fatalf("open: %v", errOpen)
	}

	for _, tenantID := range []string{"t1", "t2"} {
		rel := &models.TenantRateLimit{TenantID: tenantID, ServiceGroupID: "g1", RateLimit: intPtr(10), RateLimitPeriodMinutes: intPtr(60)}
		if errInsert := st.InsertRelation(context.Background(), rel); errInsert != nil {
			t.Fatalf("insert %s: %v", tenantID, errInsert)
		}
	}
	if errCascade := st.DeleteRelationsByServiceGroup(context.Background(), "g1"); errCascade != nil {
		t.Fatalf("cascade: %v", errCascade)
	}
	rels, errRels := st.AllRelations(context.Background())
	if errRels != nil {
		t.Fatalf("all relations: %v", errRels)
	}
	if len(rels) != 0 {
		t.Fatalf("expected 0 relations, got %d", len(rels))
	}
}

func TestFileStore_DeleteServiceGroupCascade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratelimits.json")
	st, errOpen := OpenFileStore(path)
	if errOpen != nil {
		t.Fatalf("open: %v", errOpen)
	}

	group := &models.RateLimitServiceGroup{ID: "g1", Name: "Gold"}
	if errInsert := st.InsertServiceGroup(context.Background(), group); errInsert != nil {
		t.Fatalf("insert group: %v", errInsert)
	}
	rel := &models.TenantRateLimit{TenantID: "t1", ServiceGroupID: "g1", RateLimit: intPtr(10), RateLimitPeriodMinutes: intPtr(60)}
	if errInsert := st.InsertRelation(context.Background(), rel); errInsert != nil {
		t.Fatalf("insert relation: %v", errInsert)
	}

	if errDelete := st.DeleteServiceGroupCascade(context.Background(), "g1"); errDelete != nil {
		t.Fatalf("cascade delete: %v", errDelete)
	}
	groups, errGroups := st.ListServiceGroups(context.Background())
	if errGroups != nil {
		t.Fatalf("list groups: %v", errGroups)
	}
	rels, errRels := st.AllRelations(context.Background())
	if errRels != nil {
		t.Fatalf("all relations: %v", errRels)
	}
	if len(groups) != 0 || len(rels) != 0 {
		t.Fatalf("expected empty store, got %d groups %d relations", len(groups), len(rels))
	}

	if errDelete := st.DeleteServiceGroupCascade(context.Background(), "g1"); !errors.Is(errDelete, ratelimit.ErrServiceGroupNotFound) {
		t.Fatalf("expected ErrServiceGroupNotFound, got %v", errDelete)
	}
}
