package ratelimit

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/identity-console/console/internal/models"
)

// RelationView is a display-ready row joining an allocation with its tenant
// and service group names. Views are recomputed on every read, never cached.
type RelationView struct {
	TenantID               string `json:"tenant_id"`
	TenantName             string `json:"tenant_name"`
	ServiceGroupID         string `json:"service_group_id"`
	ServiceGroupName       string `json:"service_group_name"`
	AllowUnlimitedRate     bool   `json:"allow_unlimited_rate"`
	RateLimit              *int   `json:"rate_limit"`
	RateLimitPeriodMinutes *int   `json:"rate_limit_period_minutes"`
}

// RelationViews returns sorted view rows, optionally filtered by service
// group and/or tenant. A dangling tenant or group reference yields an empty
// name rather than an error; repairing those is the deletion workflow's
// concern, not this read path's.
func (e *Engine) RelationViews(ctx context.Context, serviceGroupID, tenantID string) ([]RelationView, error) {
	rels, errFetch := e.fetchRelations(ctx, serviceGroupID, tenantID)
	if errFetch != nil {
		return nil, errFetch
	}

	tenantIDs := make([]string, 0, len(rels))
	groupIDs := make([]string, 0, len(rels))
	seenTenants := map[string]bool{}
	seenGroups := map[string]bool{}
	for _, rel := range rels {
		if !seenTenants[rel.TenantID] {
			seenTenants[rel.TenantID] = true
			tenantIDs = append(tenantIDs, rel.TenantID)
		}
		if !seenGroups[rel.ServiceGroupID] {
			seenGroups[rel.ServiceGroupID] = true
			groupIDs = append(groupIDs, rel.ServiceGroupID)
		}
	}

	tenantNames := map[string]string{}
	if len(tenantIDs) > 0 {
		tenants, errTenants := e.tenants.FindTenantsByIDs(ctx, tenantIDs)
		if errTenants != nil {
			return nil, fmt.Errorf("ratelimit: resolve tenants: %w", errTenants)
		}
		for _, tenant := range tenants {
			tenantNames[tenant.ID] = tenant.Name
		}
	}
	groupNames := map[string]string{}
	if len(groupIDs) > 0 {
		groups, errGroups := e.groups.FindServiceGroupsByIDs(ctx, groupIDs)
		if errGroups != nil {
			return nil, fmt.Errorf("ratelimit: resolve service groups: %w", errGroups)
		}
		for _, group := range groups {
			groupNames[group.ID] = group.Name
		}
	}

	views := make([]RelationView, 0, len(rels))
	for _, rel := range rels {
		views = append(views, RelationView{
			TenantID:               rel.TenantID,
			TenantName:             tenantNames[rel.TenantID],
			ServiceGroupID:         rel.ServiceGroupID,
			ServiceGroupName:       groupNames[rel.ServiceGroupID],
			AllowUnlimitedRate:     rel.AllowUnlimitedRate,
			RateLimit:              rel.RateLimit,
			RateLimitPeriodMinutes: rel.RateLimitPeriodMinutes,
		})
	}

	sort.Slice(views, func(i, j int) bool {
		ti := strings.ToLower(views[i].TenantName)
		tj := strings.ToLower(views[j].TenantName)
		if ti != tj {
			return ti < tj
		}
		return strings.ToLower(views[i].ServiceGroupName) < strings.ToLower(views[j].ServiceGroupName)
	})
	return views, nil
}

func (e *Engine) fetchRelations(ctx context.Context, serviceGroupID, tenantID string) ([]models.TenantRateLimit, error) {
	switch {
	case tenantID != "" && serviceGroupID != "":
		rels, errRels := e.relations.RelationsByTenant(ctx, tenantID)
		if errRels != nil {
			return nil, fmt.Errorf("ratelimit: load relations: %w", errRels)
		}
		filtered := rels[:0]
		for _, rel := range rels {
			if rel.ServiceGroupID == serviceGroupID {
				filtered = append(filtered, rel)
			}
		}
		return filtered, nil
	case tenantID != "":
		rels, errRels := e.relations.RelationsByTenant(ctx, tenantID)
		if errRels != nil {
			return nil, fmt.Errorf("ratelimit: load relations: %w", errRels)
		}
		return rels, nil
	case serviceGroupID != "":
		rels, errRels := e.relations.RelationsByServiceGroup(ctx, serviceGroupID)
		if errRels != nil {
			return nil, fmt.Errorf("ratelimit: load relations: %w", errRels)
		}
		return rels, nil
	default:
		rels, errRels := e.relations.AllRelations(ctx)
		if errRels != nil {
			return nil, fmt.Errorf("ratelimit: load relations: %w", errRels)
		}
		return rels, nil
	}
}
