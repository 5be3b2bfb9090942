package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/identity-console/console/internal/models"
)

// TenantRepository resolves tenants for ceiling checks and view joins.
// Lookups return (nil, nil) when no record exists.
type TenantRepository interface {
	FindTenantByID(ctx context.Context, id string) (*models.Tenant, error)
	FindTenantsByIDs(ctx context.Context, ids []string) ([]models.Tenant, error)
}

// ServiceGroupRepository persists service group definitions.
// Lookups return (nil, nil) when no record exists.
type ServiceGroupRepository interface {
	FindServiceGroupByID(ctx context.Context, id string) (*models.RateLimitServiceGroup, error)
	FindServiceGroupsByIDs(ctx context.Context, ids []string) ([]models.RateLimitServiceGroup, error)
	ListServiceGroups(ctx context.Context) ([]models.RateLimitServiceGroup, error)
	InsertServiceGroup(ctx context.Context, group *models.RateLimitServiceGroup) error
	UpdateServiceGroup(ctx context.Context, group *models.RateLimitServiceGroup) error
	DeleteServiceGroup(ctx context.Context, id string) error
}

// RelationRepository persists tenant allocations.
type RelationRepository interface {
	RelationsByTenant(ctx context.Context, tenantID string) ([]models.TenantRateLimit, error)
	RelationsByServiceGroup(ctx context.Context, serviceGroupID string) ([]models.TenantRateLimit, error)
	AllRelations(ctx context.Context) ([]models.TenantRateLimit, error)
	InsertRelation(ctx context.Context, rel *models.TenantRateLimit) error
	UpdateRelation(ctx context.Context, rel *models.TenantRateLimit) error
	// DeleteRelation reports whether a row was removed.
	DeleteRelation(ctx context.Context, tenantID, serviceGroupID string) (bool, error)
}

// Engine gatekeeps tenant allocations: it validates limit and period values,
// enforces the per-tenant aggregate ceiling, and writes through the injected
// repositories. It holds no state of its own; every operation is
// request-scoped.
type Engine struct {
	tenants   TenantRepository
	groups    ServiceGroupRepository
	relations RelationRepository
}

// NewEngine constructs an Engine over the given repositories.
func NewEngine(tenants TenantRepository, groups ServiceGroupRepository, relations RelationRepository) *Engine {
	return &Engine{tenants: tenants, groups: groups, relations: relations}
}

// Assign allocates a service group to a tenant. The ceiling check runs on the
// caller's requested limit before clamping, so an out-of-range request is
// gated on its intended value and only then normalized.
func (e *Engine) Assign(ctx context.Context, tenantID, serviceGroupID string, allowUnlimited bool, limit, periodMinutes int) (*models.TenantRateLimit, error) {
	tenant, errTenant := e.tenants.FindTenantByID(ctx, tenantID)
	if errTenant != nil {
		return nil, fmt.Errorf("ratelimit: resolve tenant: %w", errTenant)
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}

	group, errGroup := e.groups.FindServiceGroupByID(ctx, serviceGroupID)
	if errGroup != nil {
		return nil, fmt.Errorf("ratelimit: resolve service group: %w", errGroup)
	}
	if group == nil {
		return nil, ErrServiceGroupNotFound
	}

	existing, errRels := e.relations.RelationsByTenant(ctx, tenantID)
	if errRels != nil {
		return nil, fmt.Errorf("ratelimit: load relations: %w", errRels)
	}
	for _, rel := range existing {
		if rel.ServiceGroupID == serviceGroupID {
			return nil, ErrDuplicateAllocation
		}
	}

	if errCheck := checkTotalLimitNotExceeded(tenant, limit, allowUnlimited, periodMinutes, existing); errCheck != nil {
		return nil, errCheck
	}

	clampedLimit := ClampLimit(limit)
	clampedPeriod := ClampPeriodMinutes(periodMinutes)
	now := time.Now().UTC()
	rel := &models.TenantRateLimit{
		TenantID:               tenantID,
		ServiceGroupID:         serviceGroupID,
		AllowUnlimitedRate:     allowUnlimited,
		RateLimit:              &clampedLimit,
		RateLimitPeriodMinutes: &clampedPeriod,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if errInsert := e.relations.InsertRelation(ctx, rel); errInsert != nil {
		return nil, fmt.Errorf("ratelimit: insert relation: %w", errInsert)
	}
	return rel, nil
}

// Update replaces the limit values of an existing allocation in place. The
// ceiling is re-validated against the full existing set, including the old
// value of the relation being updated; the replaced value is not subtracted
// before the proposed one is added.
func (e *Engine) Update(ctx context.Context, tenantID, serviceGroupID string, allowUnlimited bool, limit, periodMinutes int) (*models.TenantRateLimit, error) {
	existing, errRels := e.relations.RelationsByTenant(ctx, tenantID)
	if errRels != nil {
		return nil, fmt.Errorf("ratelimit: load relations: %w", errRels)
	}
	var current *models.TenantRateLimit
	for i := range existing {
		if existing[i].ServiceGroupID == serviceGroupID {
			current = &existing[i]
			break
		}
	}
	if current == nil {
		return nil, ErrAllocationNotFound
	}

	if !allowUnlimited {
		tenant, errTenant := e.tenants.FindTenantByID(ctx, tenantID)
		if errTenant != nil {
			return nil, fmt.Errorf("ratelimit: resolve tenant: %w", errTenant)
		}
		if tenant == nil {
			return nil, ErrTenantNotFound
		}
		if errCheck := checkTotalLimitNotExceeded(tenant, limit, allowUnlimited, periodMinutes, existing); errCheck != nil {
			return nil, errCheck
		}
	}

	clampedLimit := ClampLimit(limit)
	clampedPeriod := ClampPeriodMinutes(periodMinutes)
	current.AllowUnlimitedRate = allowUnlimited
	current.RateLimit = &clampedLimit
	current.RateLimitPeriodMinutes = &clampedPeriod
	current.UpdatedAt = time.Now().UTC()
	if errUpdate := e.relations.UpdateRelation(ctx, current); errUpdate != nil {
		return nil, fmt.Errorf("ratelimit: update relation: %w", errUpdate)
	}
	return current, nil
}

// Remove deletes an allocation. A missing allocation is reported as
// ErrAllocationNotFound.
func (e *Engine) Remove(ctx context.Context, tenantID, serviceGroupID string) error {
	found, errDelete := e.relations.DeleteRelation(ctx, tenantID, serviceGroupID)
	if errDelete != nil {
		return fmt.Errorf("ratelimit: delete relation: %w", errDelete)
	}
	if !found {
		return ErrAllocationNotFound
	}
	return nil
}

// RelationsForTenant returns the tenant's allocations.
func (e *Engine) RelationsForTenant(ctx context.Context, tenantID string) ([]models.TenantRateLimit, error) {
	return e.relations.RelationsByTenant(ctx, tenantID)
}

// checkTotalLimitNotExceeded enforces the aggregate ceiling. Unlimited
// allocations and unlimited tenants are exempt, and a tenant without a
// configured ceiling is never checked. Mixed-period aggregation is not
// supported: the proposed period must equal the tenant default exactly.
func checkTotalLimitNotExceeded(tenant *models.Tenant, proposedLimit int, allowUnlimited bool, proposedPeriodMinutes int, existing []models.TenantRateLimit) error {
	if allowUnlimited {
		return nil
	}
	if tenant.AllowUnlimitedRate {
		return nil
	}
	if tenant.DefaultRateLimit == nil || *tenant.DefaultRateLimit == 0 {
		return nil
	}
	if tenant.DefaultRateLimitPeriodMinutes == nil || proposedPeriodMinutes != *tenant.DefaultRateLimitPeriodMinutes {
		return ErrPeriodMismatch
	}

	total := 0
	for _, rel := range existing {
		if rel.AllowUnlimitedRate {
			continue
		}
		if rel.RateLimit != nil {
			total += *rel.RateLimit
		}
	}
	if total+proposedLimit > *tenant.DefaultRateLimit {
		return &AggregateLimitError{
			TenantID:     tenant.ID,
			CurrentTotal: total,
			Proposed:     proposedLimit,
			Ceiling:      *tenant.DefaultRateLimit,
		}
	}
	return nil
}
