package models

import (
	"time"

	"gorm.io/datatypes"
)

// Client is an OAuth/OIDC client registered under a tenant.
type Client struct {
	ID string `gorm:"type:text;primaryKey"` // Opaque client identifier.

	TenantID    string `gorm:"type:text;not null;index"` // Owning tenant.
	Name        string `gorm:"type:text;not null"`       // Display name.
	Description string `gorm:"type:text"`                // Free-form description.

	RedirectURIs datatypes.JSON `gorm:"type:jsonb"` // Allowed redirect URIs.
	GrantTypes   datatypes.JSON `gorm:"type:jsonb"` // Allowed grant types.
	Scopes       datatypes.JSON `gorm:"type:jsonb"` // Granted scope names.

	Enabled bool `gorm:"not null;default:true"` // Disabled clients are rejected at the gateway.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
