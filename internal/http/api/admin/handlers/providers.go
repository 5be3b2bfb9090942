package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/identity-console/console/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProviderHandler manages federated OIDC provider endpoints.
type ProviderHandler struct {
	db *gorm.DB
}

// NewProviderHandler constructs a ProviderHandler.
func NewProviderHandler(db *gorm.DB) *ProviderHandler {
	return &ProviderHandler{db: db}
}

func providerPayload(provider models.OIDCProvider) gin.H {
	return gin.H{
		"id":         provider.ID,
		"tenant_id":  provider.TenantID,
		"name":       provider.Name,
		"issuer_url": provider.IssuerURL,
		"client_id":  provider.ClientID,
		"metadata":   json.RawMessage(provider.Metadata),
		"enabled":    provider.Enabled,
		"created_at": provider.CreatedAt,
		"updated_at": provider.UpdatedAt,
	}
}

// createProviderRequest defines the request body for provider creation.
type createProviderRequest struct {
	TenantID  string          `json:"tenant_id"`
	Name      string          `json:"name"`
	IssuerURL string          `json:"issuer_url"`
	ClientID  string          `json:"client_id"`
	Metadata  json.RawMessage `json:"metadata"`
	Enabled   *bool           `json:"enabled"`
}

// Create registers an upstream provider under a tenant.
func (h *ProviderHandler) Create(c *gin.Context) {
	var body createProviderRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	tenantID := strings.TrimSpace(body.TenantID)
	name := strings.TrimSpace(body.Name)
	issuer := strings.TrimSpace(body.IssuerURL)
	if tenantID == "" || name == "" || issuer == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing tenant_id, name or issuer_url"})
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

	metadata := datatypes.JSON(body.Metadata)
	if len(metadata) == 0 {
		metadata = datatypes.JSON([]byte("{}"))
	}
	enabled := true
	if body.Enabled != nil {
		enabled = *body.Enabled
	}
	now := time.Now().UTC()
	provider := models.OIDCProvider{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Name:      name,
		IssuerURL: issuer,
		ClientID:  strings.TrimSpace(body.ClientID),
		Metadata:  metadata,
		Enabled:   enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := h.db.WithContext(ctx).Create(&provider).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create provider failed"})
		return
	}
	c.JSON(http.StatusCreated, providerPayload(provider))
}

// List returns providers, optionally filtered by tenant.
func (h *ProviderHandler) List(c *gin.Context) {
	tenantQ := strings.TrimSpace(c.Query("tenant_id"))

	q := h.db.WithContext(c.Request.Context()).Model(&models.OIDCProvider{})
	if tenantQ != "" {
		q = q.Where("tenant_id = ?", tenantQ)
	}

	var rows []models.OIDCProvider
	if errFind := q.Order("name ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list providers failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, providerPayload(row))
	}
	c.JSON(http.StatusOK, gin.H{"providers": out})
}

// Get returns a provider by ID.
func (h *ProviderHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var provider models.OIDCProvider
	if errFind := h.db.WithContext(c.Request.Context()).Where("id = ?", id).First(&provider).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, providerPayload(provider))
}

// updateProviderRequest defines the request body for provider updates.
type updateProviderRequest struct {
	Name      *string         `json:"name"`
	IssuerURL *string         `json:"issuer_url"`
	ClientID  *string         `json:"client_id"`
	Metadata  json.RawMessage `json:"metadata"`
	Enabled   *bool           `json:"enabled"`
}

// Update modifies a provider.
func (h *ProviderHandler) Update(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var body updateProviderRequest
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
	if body.IssuerURL != nil {
		issuer := strings.TrimSpace(*body.IssuerURL)
		if issuer == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing issuer_url"})
			return
		}
		updates["issuer_url"] = issuer
	}
	if body.ClientID != nil {
		updates["client_id"] = strings.TrimSpace(*body.ClientID)
	}
	if len(body.Metadata) > 0 {
		updates["metadata"] = datatypes.JSON(body.Metadata)
	}
	if body.Enabled != nil {
		updates["enabled"] = *body.Enabled
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.OIDCProvider{}).Where("id = ?", id).Updates(updates)
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

// Delete removes a provider.
func (h *ProviderHandler) Delete(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	res := h.db.WithContext(c.Request.Context()).Where("id = ?", id).Delete(&models.OIDCProvider{})
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
