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

// SigningKeyHandler manages signing key endpoints.
type SigningKeyHandler struct {
	db *gorm.DB
}

// NewSigningKeyHandler constructs a SigningKeyHandler.
func NewSigningKeyHandler(db *gorm.DB) *SigningKeyHandler {
	return &SigningKeyHandler{db: db}
}

func signingKeyPayload(key models.SigningKey) gin.H {
	return gin.H{
		"id":         key.ID,
		"tenant_id":  key.TenantID,
		"kid":        key.Kid,
		"algorithm":  key.Algorithm,
		"status":     key.Status,
		"public_jwk": json.RawMessage(key.PublicJWK),
		"not_before": key.NotBefore,
		"not_after":  key.NotAfter,
		"created_at": key.CreatedAt,
		"updated_at": key.UpdatedAt,
	}
}

// createSigningKeyRequest defines the request body for key registration.
type createSigningKeyRequest struct {
	TenantID  string          `json:"tenant_id"`
	Kid       string          `json:"kid"`
	Algorithm string          `json:"algorithm"`
	PublicJWK json.RawMessage `json:"public_jwk"`
	NotBefore *time.Time      `json:"not_before"`
	NotAfter  *time.Time      `json:"not_after"`
}

// Create registers a signing key under a tenant. New keys start active.
func (h *SigningKeyHandler) Create(c *gin.Context) {
	var body createSigningKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	tenantID := strings.TrimSpace(body.TenantID)
	kid := strings.TrimSpace(body.Kid)
	alg := strings.TrimSpace(body.Algorithm)
	if tenantID == "" || kid == "" || alg == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing tenant_id, kid or algorithm"})
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

	jwk := datatypes.JSON(body.PublicJWK)
	if len(jwk) == 0 {
		jwk = datatypes.JSON([]byte("{}"))
	}
	now := time.Now().UTC()
	key := models.SigningKey{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Kid:       kid,
		Algorithm: alg,
		Status:    models.SigningKeyStatusActive,
		PublicJWK: jwk,
		NotBefore: body.NotBefore,
		NotAfter:  body.NotAfter,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := h.db.WithContext(ctx).Create(&key).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create signing key failed"})
		return
	}
	c.JSON(http.StatusCreated, signingKeyPayload(key))
}

// List returns signing keys, optionally filtered by tenant and status.
func (h *SigningKeyHandler) List(c *gin.Context) {
	tenantQ := strings.TrimSpace(c.Query("tenant_id"))
	statusQ := strings.TrimSpace(c.Query("status"))

	q := h.db.WithContext(c.Request.Context()).Model(&models.SigningKey{})
	if tenantQ != "" {
		q = q.Where("tenant_id = ?", tenantQ)
	}
	if statusQ != "" {
		q = q.Where("status = ?", statusQ)
	}

	var rows []models.SigningKey
	if errFind := q.Order("created_at DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list signing keys failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, signingKeyPayload(row))
	}
	c.JSON(http.StatusOK, gin.H{"signing_keys": out})
}

// Get returns a signing key by ID.
func (h *SigningKeyHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var key models.SigningKey
	if errFind := h.db.WithContext(c.Request.Context()).Where("id = ?", id).First(&key).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, signingKeyPayload(key))
}

// Retire marks a signing key as retired. Retiring an already retired key is a
// no-op.
func (h *SigningKeyHandler) Retire(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	res := h.db.WithContext(c.Request.Context()).Model(&models.SigningKey{}).Where("id = ?", id).Updates(map[string]any{
		"status":     models.SigningKeyStatusRetired,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "retire failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a signing key record.
func (h *SigningKeyHandler) Delete(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	res := h.db.WithContext(c.Request.Context()).Where("id = ?", id).Delete(&models.SigningKey{})
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
