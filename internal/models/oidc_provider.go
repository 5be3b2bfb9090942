package models

import (
	"time"

	"gorm.io/datatypes"
)

// OIDCProvider is a federated upstream identity provider configured for a tenant.
type OIDCProvider struct {
	ID string `gorm:"type:text;primaryKey"` // Opaque provider identifier.

	TenantID  string `gorm:"type:text;not null;index"` // Owning tenant.
	Name      string `gorm:"type:text;not null"`       // Display name.
	IssuerURL string `gorm:"type:text;not null"`       // OIDC issuer URL.
	ClientID  string `gorm:"type:text"`                // Client ID registered with the upstream.

	Metadata datatypes.JSON `gorm:"type:jsonb"` // Discovery/override metadata.

	Enabled bool `gorm:"not null;default:true"` // Disabled providers are hidden from login.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
