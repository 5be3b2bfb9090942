package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	dbutil "github.com/identity-console/console/internal/db"
	"github.com/identity-console/console/internal/models"
	"gorm.io/gorm"
)

// TenantHandler manages tenant endpoints.
type TenantHandler struct {
	db *gorm.DB
}

// NewTenantHandler constructs a TenantHandler.
func NewTenantHandler(db *gorm.DB) *TenantHandler {
	return &TenantHandler{db: db}
}

// tenantPayload builds the response body for a tenant.
func tenantPayload(tenant models.Tenant) gin.H {
	return gin.H{
		"id":                                tenant.ID,
		"name":                              tenant.Name,
		"description":                       tenant.Description,
		"allow_unlimited_rate":              tenant.AllowUnlimitedRate,
		"default_rate_limit":                tenant.DefaultRateLimit,
		"default_rate_limit_period_minutes": tenant.DefaultRateLimitPeriodMinutes,
		"created_at":                        tenant.CreatedAt,
		"updated_at":                        tenant.UpdatedAt,
	}
}

// createTenantRequest defines the request body for tenant creation.
type createTenantRequest struct {
	Name                          string `json:"name"`
	Description                   string `json:"description"`
	AllowUnlimitedRate            bool   `json:"allow_unlimited_rate"`
	DefaultRateLimit              *int   `json:"default_rate_limit"`
	DefaultRateLimitPeriodMinutes *int   `json:"default_rate_limit_period_minutes"`
}

// Create creates a new tenant.
func (h *TenantHandler) Create(c *gin.Context) {
	var body createTenantRequest
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
	tenant := models.Tenant{
		ID:                            uuid.NewString(),
		Name:                          name,
		Description:                   strings.TrimSpace(body.Description),
		AllowUnlimitedRate:            body.AllowUnlimitedRate,
		DefaultRateLimit:              body.DefaultRateLimit,
		DefaultRateLimitPeriodMinutes: body.DefaultRateLimitPeriodMinutes,
		CreatedAt:                     now,
		UpdatedAt:                     now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&tenant).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create tenant failed"})
		return
	}
	c.JSON(http.StatusCreated, tenantPayload(tenant))
}

// List returns all tenants, optionally filtered by name.
func (h *TenantHandler) List(c *gin.Context) {
	nameQ := strings.TrimSpace(c.Query("name"))

	q := h.db.WithContext(c.Request.Context()).Model(&models.Tenant{})
	if nameQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+nameQ+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "name"), pattern)
	}

	var rows []models.Tenant
	if errFind := q.Order("name ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list tenants failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, tenantPayload(row))
	}
	c.JSON(http.StatusOK, gin.H{"tenants": out})
}

// Get returns a tenant by ID.
func (h *TenantHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var tenant models.Tenant
	if errFind := h.db.WithContext(c.Request.Context()).Where("id = ?", id).First(&tenant).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, tenantPayload(tenant))
}

// updateTenantRequest defines the request body for tenant updates.
type updateTenantRequest struct {
	Name                          *string `json:"name"`
	Description                   *string `json:"description"`
	AllowUnlimitedRate            *bool   `json:"allow_unlimited_rate"`
	DefaultRateLimit              *int    `json:"default_rate_limit"`
	DefaultRateLimitPeriodMinutes *int    `json:"default_rate_limit_period_minutes"`
}

// Update modifies a tenant.
func (h *TenantHandler) Update(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var body updateTenantRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
			return
		}
		updates["name"] = name
	}
	if body.Description != nil {
		updates["description"] = strings.TrimSpace(*body.Description)
	}
	if body.AllowUnlimitedRate != nil {
		updates["allow_unlimited_rate"] = *body.AllowUnlimitedRate
	}
	if body.DefaultRateLimit != nil {
		updates["default_rate_limit"] = *body.DefaultRateLimit
	}
	if body.DefaultRateLimitPeriodMinutes != nil {
		updates["default_rate_limit_period_minutes"] = *body.DefaultRateLimitPeriodMinutes
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Tenant{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a tenant together with its rate limit allocations and
// tenant-scoped records.
func (h *TenantHandler) Delete(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errRels := tx.Where("tenant_id = ?", id).Delete(&models.TenantRateLimit{}).Error; errRels != nil {
			return errRels
		}
		if errClients := tx.Where("tenant_id = ?", id).Delete(&models.Client{}).Error; errClients != nil {
			return errClients
		}
		if errScopes := tx.Where("tenant_id = ?", id).Delete(&models.Scope{}).Error; errScopes != nil {
			return errScopes
		}
		if errProviders := tx.Where("tenant_id = ?", id).Delete(&models.OIDCProvider{}).Error; errProviders != nil {
			return errProviders
		}
		if errKeys := tx.Where("tenant_id = ?", id).Delete(&models.SigningKey{}).Error; errKeys != nil {
			return errKeys
		}
		res := tx.Where("id = ?", id).Delete(&models.Tenant{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errTx != nil {
		if errors.Is(errTx, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
