package models

import (
	"time"

	"gorm.io/datatypes"
)

// Signing key statuses.
const (
	SigningKeyStatusActive  = "active"
	SigningKeyStatusRetired = "retired"
)

// SigningKey records a token signing key configured for a tenant. Only key
// metadata and the public JWK are stored here; private material lives in the
// tenant's key vault.
type SigningKey struct {
	ID string `gorm:"type:text;primaryKey"` // Opaque key record identifier.

	TenantID  string `gorm:"type:text;not null;index"`                 // Owning tenant.
	Kid       string `gorm:"type:text;not null"`                       // Key ID as published in the JWKS.
	Algorithm string `gorm:"type:varchar(16);not null"`                // Signing algorithm (e.g. RS256).
	Status    string `gorm:"type:varchar(16);not null;default:active"` // active or retired.

	PublicJWK datatypes.JSON `gorm:"type:jsonb"` // Public JWK document.

	NotBefore *time.Time `gorm:""` // Activation time.
	NotAfter  *time.Time `gorm:""` // Expiry time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
