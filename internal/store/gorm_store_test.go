package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/identity-console/console/internal/models"
	"github.com/identity-console/console/internal/ratelimit"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "console.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.AutoMigrate(
		&models.Tenant{},
		&models.RateLimitServiceGroup{},
		&models.TenantRateLimit{},
	); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return db
}

func seedTenant(t *testing.T, db *gorm.DB, id, name string, ceiling, periodMinutes int) {
	t.Helper()
	tenant := models.Tenant{ID: id, Name: name}
	if ceiling > 0 {
		tenant.DefaultRateLimit = &ceiling
	}
	if periodMinutes > 0 {
		tenant.DefaultRateLimitPeriodMinutes = &periodMinutes
	}
	if errCreate := db.Create(&tenant).Error; errCreate != nil {
		t.Fatalf("seed tenant: %v", errCreate)
	}
}

func seedGroup(t *testing.T, db *gorm.DB, id, name string) {
	t.Helper()
	group := models.RateLimitServiceGroup{ID: id, Name: name}
	if errCreate := db.Create(&group).Error; errCreate != nil {
		t.Fatalf("seed group: %v", errCreate)
	}
}

func TestAtomicEngineAssign_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	seedTenant(t, db, "t1", "Acme", 0, 0)
	seedGroup(t, db, "g1", "Gold")
	engine := NewAtomicEngine(db)

	rel, errAssign := engine.Assign(context.Background(), "t1", "g1", false, 2_000_000, 60)
	if errAssign != nil {
		t.Fatalf("assign: %v", errAssign)
	}
	if rel.RateLimit == nil || *rel.RateLimit != 15 {
		t.Fatalf("expected clamped limit 15, got %v", rel.RateLimit)
	}

	rels, errRels := engine.RelationsForTenant(context.Background(), "t1")
	if errRels != nil {
		t.Fatalf("relations: %v", errRels)
	}
	if len(rels) != 1 {
		t.Fatalf("expected 1 relation, got %d", len(rels))
	}
	if rels[0].RateLimit == nil || *rels[0].RateLimit != 15 {
		t.Fatalf("expected persisted clamped limit 15, got %v", rels[0].RateLimit)
	}
	if rels[0].RateLimitPeriodMinutes == nil || *rels[0].RateLimitPeriodMinutes != 60 {
		t.Fatalf("expected period 60, got %v", rels[0].RateLimitPeriodMinutes)
	}
}

func TestAtomicEngineAssign_DuplicateConflict(t *testing.T) {
	db := openTestDB(t)
	seedTenant(t, db, "t1", "Acme", 0, 0)
	seedGroup(t, db, "g1", "Gold")
	engine := NewAtomicEngine(db)

	if _, err := engine.Assign(context.Background(), "t1", "g1", false, 10, 60); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	if _, err := engine.Assign(context.Background(), "t1", "g1", false, 20, 60); !errors.Is(err, ratelimit.ErrDuplicateAllocation) {
		t.Fatalf("expected ErrDuplicateAllocation, got %v", err)
	}

	var count int64
	if errCount := db.Model(&models.TenantRateLimit{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 relation row, got %d", count)
	}
}

func TestAtomicEngineAssign_CeilingEnforced(t *testing.T) {
	db := openTestDB(t)
	seedTenant(t, db, "t1", "Acme", 100, 60)
	seedGroup(t, db, "g1", "Gold")
	seedGroup(t, db, "g2", "Silver")
	engine := NewAtomicEngine(db)

	if _, err := engine.Assign(context.Background(), "t1", "g1", false, 60, 60); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	if _, err := engine.Assign(context.Background(), "t1", "g2", false, 50, 60); !errors.Is(err, ratelimit.ErrAggregateLimitExceeded) {
		t.Fatalf("expected ErrAggregateLimitExceeded, got %v", err)
	}
	if _, err := engine.Assign(context.Background(), "t1", "g2", false, 40, 60); err != nil {
		t.Fatalf("assign at exact ceiling: %v", err)
	}
}

func TestAtomicEngineRelationViews_Sorted(t *testing.T) {
	db := openTestDB(t)
	seedTenant(t, db, "t-beta", "Beta", 0, 0)
	seedTenant(t, db, "t-alpha", "Alpha", 0, 0)
	seedGroup(t, db, "g-zulu", "Zulu")
	seedGroup(t, db, "g-ag", "Alpha-Group")
	engine := NewAtomicEngine(db)

	if _, err := engine.Assign(context.Background(), "t-beta", "g-zulu", false, 10, 60); err != nil {
		t.Fatalf("assign beta: %v", err)
	}
	if _, err := engine.Assign(context.Background(), "t-alpha", "g-ag", false, 10, 60); err != nil {
		t.Fatalf("assign alpha: %v", err)
	}

	views, errViews := engine.RelationViews(context.Background(), "", "")
	if errViews != nil {
		t.Fatalf("views: %v", errViews)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
	if views[0].TenantName != "Alpha" || views[1].TenantName != "Beta" {
		t.Fatalf("expected Alpha before Beta, got %q then %q", views[0].TenantName, views[1].TenantName)
	}
}

func TestGormStoreDeleteRelationsByServiceGroup(t *testing.T) {
	db := openTestDB(t)
	seedTenant(t, db, "t1", "Acme", 0, 0)
	seedTenant(t, db, "t2", "Globex", 0, 0)
	seedGroup(t, db, "g1", "Gold")
	engine := NewAtomicEngine(db)

	if _, err := engine.Assign(context.Background(), "t1", "g1", false, 10, 60); err != nil {
		t.Fatalf("assign t1: %v", err)
	}
	if _, err := engine.Assign(context.Background(), "t2", "g1", false, 10, 60); err != nil {
		t.Fatalf("assign t2: %v", err)
	}

	st := NewGormStore(db)
	if errDelete := st.DeleteRelationsByServiceGroup(context.Background(), "g1"); errDelete != nil {
		t.Fatalf("delete relations: %v", errDelete)
	}
	var count int64
	if errCount := db.Model(&models.TenantRateLimit{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("expected 0 relations after cascade, got %d", count)
	}
}

func TestGormStoreDeleteServiceGroupCascade(t *testing.T) {
	db := openTestDB(t)
	seedTenant(t, db, "t1", "Acme", 0, 0)
	seedGroup(t, db, "g1", "Gold")
	engine := NewAtomicEngine(db)

	if _, err := engine.Assign(context.Background(), "t1", "g1", false, 10, 60); err != nil {
		t.Fatalf("assign: %v", err)
	}

	st := NewGormStore(db)
	if errDelete := st.DeleteServiceGroupCascade(context.Background(), "g1"); errDelete != nil {
		t.Fatalf("cascade delete: %v", errDelete)
	}
	var groups, rels int64
	if errCount := db.Model(&models.RateLimitServiceGroup{}).Count(&groups).Error; errCount != nil {
		t.Fatalf("count groups: %v", errCount)
	}
	if errCount := db.Model(&models.TenantRateLimit{}).Count(&rels).Error; errCount != nil {
		t.Fatalf("count relations: %v", errCount)
	}
	if groups != 0 || rels != 0 {
		t.Fatalf("expected empty tables, got %d groups %d relations", groups, rels)
	}

	if errDelete := st.DeleteServiceGroupCascade(context.Background(), "g1"); !errors.Is(errDelete, ratelimit.ErrServiceGroupNotFound) {
		t.Fatalf("expected ErrServiceGroupNotFound, got %v", errDelete)
	}
}
