package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/identity-console/console/internal/models"
	"github.com/identity-console/console/internal/ratelimit"
)

// Allocator performs tenant rate limit allocation operations.
type Allocator interface {
	Assign(ctx context.Context, tenantID, serviceGroupID string, allowUnlimited bool, limit, periodMinutes int) (*models.TenantRateLimit, error)
	Update(ctx context.Context, tenantID, serviceGroupID string, allowUnlimited bool, limit, periodMinutes int) (*models.TenantRateLimit, error)
	Remove(ctx context.Context, tenantID, serviceGroupID string) error
	RelationsForTenant(ctx context.Context, tenantID string) ([]models.TenantRateLimit, error)
	RelationViews(ctx context.Context, serviceGroupID, tenantID string) ([]ratelimit.RelationView, error)
}

// GroupStore persists service groups and their allocations.
type GroupStore interface {
	ratelimit.ServiceGroupRepository
	RelationsByTenant(ctx context.Context, tenantID string) ([]models.TenantRateLimit, error)
	// DeleteServiceGroupCascade removes the group and its allocations atomically.
	DeleteServiceGroupCascade(ctx context.Context, id string) error
}

// ServiceGroupHandler manages service group and allocation endpoints.
type ServiceGroupHandler struct {
	store GroupStore
	alloc Allocator
}

// NewServiceGroupHandler constructs a ServiceGroupHandler.
func NewServiceGroupHandler(store GroupStore, alloc Allocator) *ServiceGroupHandler {
	return &ServiceGroupHandler{store: store, alloc: alloc}
}

// groupPayload builds the response body for a service group.
func groupPayload(group models.RateLimitServiceGroup) gin.H {
	return gin.H{
		"id":          group.ID,
		"name":        group.Name,
		"description": group.Description,
		"created_at":  group.CreatedAt,
		"updated_at":  group.UpdatedAt,
	}
}

// relationPayload builds the response body for an allocation.
func relationPayload(rel models.TenantRateLimit) gin.H {
	return gin.H{
		"tenant_id":                 rel.TenantID,
		"service_group_id":          rel.ServiceGroupID,
		"allow_unlimited_rate":      rel.AllowUnlimitedRate,
		"rate_limit":                rel.RateLimit,
		"rate_limit_period_minutes": rel.RateLimitPeriodMinutes,
		"created_at":                rel.CreatedAt,
		"updated_at":                rel.UpdatedAt,
	}
}

// writeAllocationError maps allocation failures onto HTTP responses. An
// aggregate ceiling rejection carries its numeric detail so the UI can
// explain it.
func writeAllocationError(c *gin.Context, err error) {
	var aggErr *ratelimit.AggregateLimitError
	switch {
	case errors.Is(err, ratelimit.ErrTenantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
	case errors.Is(err, ratelimit.ErrServiceGroupNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "service group not found"})
	case errors.Is(err, ratelimit.ErrAllocationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "allocation not found"})
	case errors.Is(err, ratelimit.ErrDuplicateAllocation):
		c.JSON(http.StatusConflict, gin.H{"error": "allocation already exists"})
	case errors.Is(err, ratelimit.ErrPeriodMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "period does not match tenant default"})
	case errors.As(err, &aggErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":         "aggregate rate limit exceeded",
			"current_total": aggErr.CurrentTotal,
			"proposed":      aggErr.Proposed,
			"ceiling":       aggErr.Ceiling,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rate limit operation failed"})
	}
}

// createServiceGroupRequest defines the request body for group creation.
type createServiceGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create creates a new service group.
func (h *ServiceGroupHandler) Create(c *gin.Context) {
	var body createServiceGroupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}

	now := time.Now().UTC()
	group := models.RateLimitServiceGroup{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(body.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errInsert := h.store.InsertServiceGroup(c.Request.Context(), &group); errInsert != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create service group failed"})
		return
	}
	c.JSON(http.StatusCreated, groupPayload(group))
}

// List returns all service groups, or only those allocated to a tenant when
// tenant_id is given.
func (h *ServiceGroupHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	tenantQ := strings.TrimSpace(c.Query("tenant_id"))

	var groups []models.RateLimitServiceGroup
	if tenantQ != "" {
		rels, errRels := h.store.RelationsByTenant(ctx, tenantQ)
		if errRels != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list service groups failed"})
			return
		}
		ids := make([]string, 0, len(rels))
		for _, rel := range rels {
			ids = append(ids, rel.ServiceGroupID)
		}
		found, errFind := h.store.FindServiceGroupsByIDs(ctx, ids)
		if errFind != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list service groups failed"})
			return
		}
		groups = found
	} else {
		all, errList := h.store.ListServiceGroups(ctx)
		if errList != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list service groups failed"})
			return
		}
		groups = all
	}

	out := make([]gin.H, 0, len(groups))
	for _, group := range groups {
		out = append(out, groupPayload(group))
	}
	c.JSON(http.StatusOK, gin.H{"service_groups": out})
}

// Get returns a service group by ID.
func (h *ServiceGroupHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	group, errFind := h.store.FindServiceGroupByID(c.Request.Context(), id)
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if group == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, groupPayload(*group))
}

// updateServiceGroupRequest defines the request body for group updates.
type updateServiceGroupRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Update modifies a service group.
func (h *ServiceGroupHandler) Update(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var body updateServiceGroupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	ctx := c.Request.Context()
	group, errFind := h.store.FindServiceGroupByID(ctx, id)
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if group == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
			return
		}
		group.Name = name
	}
	if body.Description != nil {
		group.Description = strings.TrimSpace(*body.Description)
	}
	group.UpdatedAt = time.Now().UTC()

	if errUpdate := h.store.UpdateServiceGroup(ctx, group); errUpdate != nil {
		if errors.Is(errUpdate, ratelimit.ErrServiceGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, groupPayload(*group))
}

// Delete removes a service group together with its allocations.
func (h *ServiceGroupHandler) Delete(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	if errDelete := h.store.DeleteServiceGroupCascade(c.Request.Context(), id); errDelete != nil {
		if errors.Is(errDelete, ratelimit.ErrServiceGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// allocationRequest defines the request body for assigning or updating a
// tenant's allocation.
type allocationRequest struct {
	AllowUnlimitedRate     bool `json:"allow_unlimited_rate"`
	RateLimit              int  `json:"rate_limit"`
	RateLimitPeriodMinutes int  `json:"rate_limit_period_minutes"`
}

// ListForTenant returns the tenant's allocations.
func (h *ServiceGroupHandler) ListForTenant(c *gin.Context) {
	tenantID := strings.TrimSpace(c.Param("id"))
	rels, errRels := h.alloc.RelationsForTenant(c.Request.Context(), tenantID)
	if errRels != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list allocations failed"})
		return
	}
	out := make([]gin.H, 0, len(rels))
	for _, rel := range rels {
		out = append(out, relationPayload(rel))
	}
	c.JSON(http.StatusOK, gin.H{"rate_limits": out})
}

// assignRequest defines the request body for assignment, which also names
// the service group.
type assignRequest struct {
	ServiceGroupID         string `json:"service_group_id"`
	AllowUnlimitedRate     bool   `json:"allow_unlimited_rate"`
	RateLimit              int    `json:"rate_limit"`
	RateLimitPeriodMinutes int    `json:"rate_limit_period_minutes"`
}

// Assign allocates a service group to the tenant.
func (h *ServiceGroupHandler) Assign(c *gin.Context) {
	tenantID := strings.TrimSpace(c.Param("id"))
	var body assignRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	groupID := strings.TrimSpace(body.ServiceGroupID)
	if groupID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing service_group_id"})
		return
	}

	rel, errAssign := h.alloc.Assign(c.Request.Context(), tenantID, groupID,
		body.AllowUnlimitedRate, body.RateLimit, body.RateLimitPeriodMinutes)
	if errAssign != nil {
		writeAllocationError(c, errAssign)
		return
	}
	c.JSON(http.StatusCreated, relationPayload(*rel))
}

// UpdateAllocation replaces the limit values of an existing allocation.
func (h *ServiceGroupHandler) UpdateAllocation(c *gin.Context) {
	tenantID := strings.TrimSpace(c.Param("id"))
	groupID := strings.TrimSpace(c.Param("group_id"))
	var body allocationRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	rel, errUpdate := h.alloc.Update(c.Request.Context(), tenantID, groupID,
		body.AllowUnlimitedRate, body.RateLimit, body.RateLimitPeriodMinutes)
	if errUpdate != nil {
		writeAllocationError(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, relationPayload(*rel))
}

// RemoveAllocation deletes an allocation.
func (h *ServiceGroupHandler) RemoveAllocation(c *gin.Context) {
	tenantID := strings.TrimSpace(c.Param("id"))
	groupID := strings.TrimSpace(c.Param("group_id"))

	if errRemove := h.alloc.Remove(c.Request.Context(), tenantID, groupID); errRemove != nil {
		writeAllocationError(c, errRemove)
		return
	}
	c.Status(http.StatusNoContent)
}

// RelationViews returns sorted, denormalized allocation rows for display.
func (h *ServiceGroupHandler) RelationViews(c *gin.Context) {
	groupQ := strings.TrimSpace(c.Query("service_group_id"))
	tenantQ := strings.TrimSpace(c.Query("tenant_id"))

	views, errViews := h.alloc.RelationViews(c.Request.Context(), groupQ, tenantQ)
	if errViews != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list relation views failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"relations": views})
}
