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

// ScopeHandler manages scope endpoints.
type ScopeHandler struct {
	db *gorm.DB
}

// NewScopeHandler constructs a ScopeHandler.
func NewScopeHandler(db *gorm.DB) *ScopeHandler {
	return &ScopeHandler{db: db}
}

func scopePayload(scope models.Scope) gin.H {
	return gin.H{
		"id":          scope.ID,
		"tenant_id":   scope.TenantID,
		"name":        scope.Name,
		"description": scope.Description,
		"created_at":  scope.CreatedAt,
		"updated_at":  scope.UpdatedAt,
	}
}

// createScopeRequest defines the request body for scope creation.
type createScopeRequest struct {
	TenantID    string `json:"tenant_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create registers a scope under a tenant.
func (h *ScopeHandler) Create(c *gin.Context) {
	var body createScopeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	tenantID := strings.TrimSpace(body.TenantID)
	name := strings.TrimSpace(body.Name)
	if tenantID == "" || name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing tenant_id or name"})
		return
	}

	ctx := c.Request.Context()
	var count int64
	if errCount := h.db.WithContext(ctx).Model(&models.Tenant{}).Where("id = ?", tenantID).Count(&count).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if count == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
		return
	}

	now := time.Now().UTC()
	scope := models.Scope{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Name:        name,
		Description: strings.TrimSpace(body.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errCreate := h.db.WithContext(ctx).Create(&scope).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create scope failed"})
		return
	}
	c.JSON(http.StatusCreated, scopePayload(scope))
}

// List returns scopes, optionally filtered by tenant and name.
func (h *ScopeHandler) List(c *gin.Context) {
	tenantQ := strings.TrimSpace(c.Query("tenant_id"))
	nameQ := strings.TrimSpace(c.Query("name"))

	q := h.db.WithContext(c.Request.Context()).Model(&models.Scope{})
	if tenantQ != "" {
		q = q.Where("tenant_id = ?", tenantQ)
	}
	if nameQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+nameQ+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "name"), pattern)
	}

	var rows []models.Scope
	if errFind := q.Order("name ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list scopes failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, scopePayload(row))
	}
	c.JSON(http.StatusOK, gin.H{"scopes": out})
}

// Get returns a scope by ID.
func (h *ScopeHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var scope models.Scope
	if errFind := h.db.WithContext(c.Request.Context()).Where("id = ?", id).First(&scope).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, scopePayload(scope))
}

// updateScopeRequest defines the request body for scope updates.
type updateScopeRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Update modifies a scope.
func (h *ScopeHandler) Update(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var body updateScopeRequest
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

	res := h.db.WithContext(c.Request.Context()).Model(&models.Scope{}).Where("id = ?", id).Updates(updates)
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

// Delete removes a scope.
func (h *ScopeHandler) Delete(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	res := h.db.WithContext(c.Request.Context()).Where("id = ?", id).Delete(&models.Scope{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
