package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	dbutil "github.com/identity-console/console/internal/db"
	"github.com/identity-console/console/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ClientHandler manages OAuth/OIDC client endpoints.
type ClientHandler struct {
	db *gorm.DB
}

// NewClientHandler constructs a ClientHandler.
func NewClientHandler(db *gorm.DB) *ClientHandler {
	return &ClientHandler{db: db}
}

// jsonList marshals a string slice into a JSON column value. A nil slice is
// stored as an empty array so readers never see null.
func jsonList(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	raw, _ := json.Marshal(values)
	return datatypes.JSON(raw)
}

// clientPayload builds the response body for a client.
func clientPayload(client models.Client) gin.H {
	return gin.H{
		"id":            client.ID,
		"tenant_id":     client.TenantID,
		"name":          client.Name,
		"description":   client.Description,
		"redirect_uris": json.RawMessage(client.RedirectURIs),
		"grant_types":   json.RawMessage(client.GrantTypes),
		"scopes":        json.RawMessage(client.Scopes),
		"enabled":       client.Enabled,
		"created_at":    client.CreatedAt,
		"updated_at":    client.UpdatedAt,
	}
}

// createClientRequest defines the request body for client creation.
type createClientRequest struct {
	TenantID     string   `json:"tenant_id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	RedirectURIs []string `json:"redirect_uris"`
	GrantTypes   []string `json:"grant_types"`
	Scopes       []string `json:"scopes"`
	Enabled      *bool    `json:"enabled"`
}

// Create registers a client under a tenant.
func (h *ClientHandler) Create(c *gin.Context) {
	var body createClientRequest
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

	enabled := true
	if body.Enabled != nil {
		enabled = *body.Enabled
	}
	now := time.Now().UTC()
	client := models.Client{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		Name:         name,
		Description:  strings.TrimSpace(body.Description),
		RedirectURIs: jsonList(body.RedirectURIs),
		GrantTypes:   jsonList(body.GrantTypes),
		Scopes:       jsonList(body.Scopes),
		Enabled:      enabled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if errCreate := h.db.WithContext(ctx).Create(&client).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create client failed"})
		return
	}
	c.JSON(http.StatusCreated, clientPayload(client))
}

// List returns clients, optionally filtered by tenant and name.
func (h *ClientHandler) List(c *gin.Context) {
	tenantQ := strings.TrimSpace(c.Query("tenant_id"))
	nameQ := strings.TrimSpace(c.Query("name"))

	q := h.db.WithContext(c.Request.Context()).Model(&models.Client{})
	if tenantQ != "" {
		q = q.Where("tenant_id = ?", tenantQ)
	}
	if nameQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+nameQ+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "name"), pattern)
	}

	var rows []models.Client
	if errFind := q.Order("name ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list clients failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, clientPayload(row))
	}
	c.JSON(http.StatusOK, gin.H{"clients": out})
}

// Get returns a client by ID.
func (h *ClientHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var client models.Client
	if errFind := h.db.WithContext(c.Request.Context()).Where("id = ?", id).First(&client).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, clientPayload(client))
}

// updateClientRequest defines the request body for client updates.
type updateClientRequest struct {
	Name         *string   `json:"name"`
	Description  *string   `json:"description"`
	RedirectURIs *[]string `json:"redirect_uris"`
	GrantTypes   *[]string `json:"grant_types"`
	Scopes       *[]string `json:"scopes"`
	Enabled      *bool     `json:"enabled"`
}

// Update modifies a client.
func (h *ClientHandler) Update(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var body updateClientRequest
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
	if body.RedirectURIs != nil {
		updates["redirect_uris"] = jsonList(*body.RedirectURIs)
	}
	if body.GrantTypes != nil {
		updates["grant_types"] = jsonList(*body.GrantTypes)
	}
	if body.Scopes != nil {
		updates["scopes"] = jsonList(*body.Scopes)
	}
	if body.Enabled != nil {
		updates["enabled"] = *body.Enabled
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Client{}).Where("id = ?", id).Updates(updates)
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

// Delete removes a client.
func (h *ClientHandler) Delete(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	res := h.db.WithContext(c.Request.Context()).Where("id = ?", id).Delete(&models.Client{})
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
