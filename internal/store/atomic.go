package store

import (
	"context"

	"github.com/identity-console/console/internal/models"
	"github.com/identity-console/console/internal/ratelimit"
	"gorm.io/gorm"
)

// AtomicEngine runs each allocation mutation inside a single database
// transaction, so the ceiling check and the write it gates cannot interleave
// with a concurrent mutation for the same tenant. The legacy design had no
// isolation here; reads go through a plain engine.
type AtomicEngine struct {
	db     *gorm.DB
	engine *ratelimit.Engine
}

// NewAtomicEngine constructs an AtomicEngine over the database.
func NewAtomicEngine(db *gorm.DB) *AtomicEngine {
	st := NewGormStore(db)
	return &AtomicEngine{
		db:     db,
		engine: ratelimit.NewEngine(st, st, st),
	}
}

// Assign allocates a service group to a tenant transactionally.
func (a *AtomicEngine) Assign(ctx context.Context, tenantID, serviceGroupID string, allowUnlimited bool, limit, periodMinutes int) (*models.TenantRateLimit, error) {
	var rel *models.TenantRateLimit
	errTx := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := NewGormStore(tx)
		created, errAssign := ratelimit.NewEngine(st, st, st).
			Assign(ctx, tenantID, serviceGroupID, allowUnlimited, limit, periodMinutes)
		if errAssign != nil {
			return errAssign
		}
		rel = created
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return rel, nil
}

// Update revalidates and replaces an allocation transactionally.
func (a *AtomicEngine) Update(ctx context.Context, tenantID, serviceGroupID string, allowUnlimited bool, limit, periodMinutes int) (*models.TenantRateLimit, error) {
	var rel *models.TenantRateLimit
	errTx := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := NewGormStore(tx)
		updated, errUpdate := ratelimit.NewEngine(st, st, st).
			Update(ctx, tenantID, serviceGroupID, allowUnlimited, limit, periodMinutes)
		if errUpdate != nil {
			return errUpdate
		}
		rel = updated
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return rel, nil
}

// Remove deletes an allocation.
func (a *AtomicEngine) Remove(ctx context.Context, tenantID, serviceGroupID string) error {
	return a.engine.Remove(ctx, tenantID, serviceGroupID)
}

// RelationsForTenant returns the tenant's allocations.
func (a *AtomicEngine) RelationsForTenant(ctx context.Context, tenantID string) ([]models.TenantRateLimit, error) {
	return a.engine.RelationsForTenant(ctx, tenantID)
}

// RelationViews returns sorted, denormalized allocation rows.
func (a *AtomicEngine) RelationViews(ctx context.Context, serviceGroupID, tenantID string) ([]ratelimit.RelationView, error) {
	return a.engine.RelationViews(ctx, serviceGroupID, tenantID)
}
