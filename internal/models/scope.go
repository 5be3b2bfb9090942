package models

import "time"

// Scope is a named permission grantable to clients within a tenant.
type Scope struct {
	ID string `gorm:"type:text;primaryKey"` // Opaque scope identifier.

	TenantID    string `gorm:"type:text;not null;index"` // Owning tenant.
	Name        string `gorm:"type:text;not null"`       // Scope name as issued in tokens.
	Description string `gorm:"type:text"`                // Free-form description.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
