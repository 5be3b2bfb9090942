package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/identity-console/console/internal/models"
	"github.com/identity-console/console/internal/ratelimit"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint violations.
const pgUniqueViolation = "23505"

// GormStore implements the rate limit repositories over a relational database.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// FindTenantByID returns the tenant or nil when absent.
func (s *GormStore) FindTenantByID(ctx context.Context, id string) (*models.Tenant, error) {
	var tenant models.Tenant
	errFind := s.db.WithContext(ctx).Where("id = ?", id).First(&tenant).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if errFind != nil {
		return nil, fmt.Errorf("store: find tenant: %w", errFind)
	}
	return &tenant, nil
}

// FindTenantsByIDs returns the tenants matching the given ids.
func (s *GormStore) FindTenantsByIDs(ctx context.Context, ids []string) ([]models.Tenant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var tenants []models.Tenant
	if errFind := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&tenants).Error; errFind != nil {
		return nil, fmt.Errorf("store: find tenants: %w", errFind)
	}
	return tenants, nil
}

// FindServiceGroupByID returns the service group or nil when absent.
func (s *GormStore) FindServiceGroupByID(ctx context.Context, id string) (*models.RateLimitServiceGroup, error) {
	var group models.RateLimitServiceGroup
	errFind := s.db.WithContext(ctx).Where("id = ?", id).First(&group).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if errFind != nil {
		return nil, fmt.Errorf("store: find service group: %w", errFind)
	}
	return &group, nil
}

// FindServiceGroupsByIDs returns the service groups matching the given ids.
func (s *GormStore) FindServiceGroupsByIDs(ctx context.Context, ids []string) ([]models.RateLimitServiceGroup, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var groups []models.RateLimitServiceGroup
	if errFind := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&groups).Error; errFind != nil {
		return nil, fmt.Errorf("store: find service groups: %w", errFind)
	}
	return groups, nil
}

// ListServiceGroups returns all service groups ordered by name.
func (s *GormStore) ListServiceGroups(ctx context.Context) ([]models.RateLimitServiceGroup, error) {
	var groups []models.RateLimitServiceGroup
	if errFind := s.db.WithContext(ctx).Order("name ASC").Find(&groups).Error; errFind != nil {
		return nil, fmt.Errorf("store: list service groups: %w", errFind)
	}
	return groups, nil
}

// InsertServiceGroup creates a service group record.
func (s *GormStore) InsertServiceGroup(ctx context.Context, group *models.RateLimitServiceGroup) error {
	if errCreate := s.db.WithContext(ctx).Create(group).Error; errCreate != nil {
		return fmt.Errorf("store: insert service group: %w", errCreate)
	}
	return nil
}

// UpdateServiceGroup updates a service group in place.
func (s *GormStore) UpdateServiceGroup(ctx context.Context, group *models.RateLimitServiceGroup) error {
	res := s.db.WithContext(ctx).Model(&models.RateLimitServiceGroup{}).Where("id = ?", group.ID).
		Updates(map[string]any{
			"name":        group.Name,
			"description": group.Description,
			"updated_at":  group.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("store: update service group: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ratelimit.ErrServiceGroupNotFound
	}
	return nil
}

// DeleteServiceGroup removes a service group record.
func (s *GormStore) DeleteServiceGroup(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.RateLimitServiceGroup{})
	if res.Error != nil {
		return fmt.Errorf("store: delete service group: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ratelimit.ErrServiceGroupNotFound
	}
	return nil
}

// RelationsByTenant returns all allocations held by the tenant.
func (s *GormStore) RelationsByTenant(ctx context.Context, tenantID string) ([]models.TenantRateLimit, error) {
	var rels []models.TenantRateLimit
	if errFind := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Find(&rels).Error; errFind != nil {
		return nil, fmt.Errorf("store: relations by tenant: %w", errFind)
	}
	return rels, nil
}

// RelationsByServiceGroup returns all allocations referencing the service group.
func (s *GormStore) RelationsByServiceGroup(ctx context.Context, serviceGroupID string) ([]models.TenantRateLimit, error) {
	var rels []models.TenantRateLimit
	if errFind := s.db.WithContext(ctx).Where("service_group_id = ?", serviceGroupID).Find(&rels).Error; errFind != nil {
		return nil, fmt.Errorf("store: relations by service group: %w", errFind)
	}
	return rels, nil
}

// AllRelations returns every allocation.
func (s *GormStore) AllRelations(ctx context.Context) ([]models.TenantRateLimit, error) {
	var rels []models.TenantRateLimit
	if errFind := s.db.WithContext(ctx).Find(&rels).Error; errFind != nil {
		return nil, fmt.Errorf("store: all relations: %w", errFind)
	}
	return rels, nil
}

// InsertRelation creates an allocation row. A unique violation on the
// composite key is reported as a duplicate allocation so a concurrent insert
// that slips past the engine's read still surfaces as a conflict.
func (s *GormStore) InsertRelation(ctx context.Context, rel *models.TenantRateLimit) error {
	if errCreate := s.db.WithContext(ctx).Create(rel).Error; errCreate != nil {
		if isUniqueViolation(errCreate) {
			return ratelimit.ErrDuplicateAllocation
		}
		return fmt.Errorf("store: insert relation: %w", errCreate)
	}
	return nil
}

// UpdateRelation updates an allocation's limit fields in place.
func (s *GormStore) UpdateRelation(ctx context.Context, rel *models.TenantRateLimit) error {
	res := s.db.WithContext(ctx).Model(&models.TenantRateLimit{}).
		Where("tenant_id = ? AND service_group_id = ?", rel.TenantID, rel.ServiceGroupID).
		Updates(map[string]any{
			"allow_unlimited_rate":      rel.AllowUnlimitedRate,
			"rate_limit":                rel.RateLimit,
			"rate_limit_period_minutes": rel.RateLimitPeriodMinutes,
			"updated_at":                rel.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("store: update relation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ratelimit.ErrAllocationNotFound
	}
	return nil
}

// DeleteRelation removes an allocation and reports whether a row existed.
func (s *GormStore) DeleteRelation(ctx context.Context, tenantID, serviceGroupID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("tenant_id = ? AND service_group_id = ?", tenantID, serviceGroupID).
		Delete(&models.TenantRateLimit{})
	if res.Error != nil {
		return false, fmt.Errorf("store: delete relation: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DeleteRelationsByServiceGroup removes every allocation referencing the
// service group. Used by the deletion workflow before the group itself goes.
func (s *GormStore) DeleteRelationsByServiceGroup(ctx context.Context, serviceGroupID string) error {
	if errDelete := s.db.WithContext(ctx).
		Where("service_group_id = ?", serviceGroupID).
		Delete(&models.TenantRateLimit{}).Error; errDelete != nil {
		return fmt.Errorf("store: delete relations by service group: %w", errDelete)
	}
	return nil
}

// DeleteServiceGroupCascade removes a service group and every allocation
// referencing it in one transaction.
func (s *GormStore) DeleteServiceGroupCascade(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errRels := tx.Where("service_group_id = ?", id).Delete(&models.TenantRateLimit{}).Error; errRels != nil {
			return fmt.Errorf("store: delete relations by service group: %w", errRels)
		}
		res := tx.Where("id = ?", id).Delete(&models.RateLimitServiceGroup{})
		if res.Error != nil {
			return fmt.Errorf("store: delete service group: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ratelimit.ErrServiceGroupNotFound
		}
		return nil
	})
}

// isUniqueViolation reports whether the error is a unique constraint failure
// on either supported dialect.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}
