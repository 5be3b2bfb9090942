package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/identity-console/console/internal/config"
	handlers "github.com/identity-console/console/internal/http/api/admin/handlers"
	"github.com/identity-console/console/internal/models"
	"github.com/identity-console/console/internal/security"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers admin routes, middleware, and handlers. The
// allocator and group store abstract the rate limit backend so the same
// routes serve both the database and file configurations.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, store handlers.GroupStore, alloc handlers.Allocator) {
	if r == nil || db == nil {
		return
	}

	r.GET("/healthz", handlers.Healthz)
	r.GET("/v0/version", handlers.GetVersion)

	adminGroup := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	adminGroup.POST("/login", authHandler.Login)

	authed := adminGroup.Group("")
	authed.Use(adminAuthMiddleware(db, jwtCfg))

	tenantHandler := handlers.NewTenantHandler(db)
	authed.POST("/tenants", tenantHandler.Create)
	authed.GET("/tenants", tenantHandler.List)
	authed.GET("/tenants/:id", tenantHandler.Get)
	authed.PUT("/tenants/:id", tenantHandler.Update)
	authed.DELETE("/tenants/:id", tenantHandler.Delete)

	groupHandler := handlers.NewServiceGroupHandler(store, alloc)
	authed.POST("/service-groups", groupHandler.Create)
	authed.GET("/service-groups", groupHandler.List)
	authed.GET("/service-groups/:id", groupHandler.Get)
	authed.PUT("/service-groups/:id", groupHandler.Update)
	authed.DELETE("/service-groups/:id", groupHandler.Delete)

	authed.GET("/tenants/:id/rate-limits", groupHandler.ListForTenant)
	authed.POST("/tenants/:id/rate-limits", groupHandler.Assign)
	authed.PUT("/tenants/:id/rate-limits/:group_id", groupHandler.UpdateAllocation)
	authed.DELETE("/tenants/:id/rate-limits/:group_id", groupHandler.RemoveAllocation)
	authed.GET("/rate-limit-relations", groupHandler.RelationViews)

	clientHandler := handlers.NewClientHandler(db)
	authed.POST("/clients", clientHandler.Create)
	authed.GET("/clients", clientHandler.List)
	authed.GET("/clients/:id", clientHandler.Get)
	authed.PUT("/clients/:id", clientHandler.Update)
	authed.DELETE("/clients/:id", clientHandler.Delete)

	scopeHandler := handlers.NewScopeHandler(db)
	authed.POST("/scopes", scopeHandler.Create)
	authed.GET("/scopes", scopeHandler.List)
	authed.GET("/scopes/:id", scopeHandler.Get)
	authed.PUT("/scopes/:id", scopeHandler.Update)
	authed.DELETE("/scopes/:id", scopeHandler.Delete)

	providerHandler := handlers.NewProviderHandler(db)
	authed.POST("/oidc-providers", providerHandler.Create)
	authed.GET("/oidc-providers", providerHandler.List)
	authed.GET("/oidc-providers/:id", providerHandler.Get)
	authed.PUT("/oidc-providers/:id", providerHandler.Update)
	authed.DELETE("/oidc-providers/:id", providerHandler.Delete)

	signingKeyHandler := handlers.NewSigningKeyHandler(db)
	authed.POST("/signing-keys", signingKeyHandler.Create)
	authed.GET("/signing-keys", signingKeyHandler.List)
	authed.GET("/signing-keys/:id", signingKeyHandler.Get)
	authed.POST("/signing-keys/:id/retire", signingKeyHandler.Retire)
	authed.DELETE("/signing-keys/:id", signingKeyHandler.Delete)

	adminHandler := handlers.NewAdminHandler(db)
	authed.POST("/admins", adminHandler.Create)
	authed.GET("/admins", adminHandler.List)
	authed.GET("/admins/:id", adminHandler.Get)
	authed.POST("/admins/:id/disable", adminHandler.Disable)
	authed.POST("/admins/:id/enable", adminHandler.Enable)
	authed.PUT("/admins/:id/password", adminHandler.ChangePassword)
}

// adminAuthMiddleware validates admin JWTs and loads admin context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin disabled"})
			return
		}

		c.Set("adminID", admin.ID)
		c.Set("adminUsername", admin.Username)
		c.Next()
	}
}
