package models

import "time"

// Tenant is a managed identity realm.
type Tenant struct {
	ID string `gorm:"type:text;primaryKey"` // Opaque tenant identifier.

	Name        string `gorm:"type:text;not null;uniqueIndex"` // Display name.
	Description string `gorm:"type:text"`                      // Free-form description.

	AllowUnlimitedRate            bool `gorm:"not null;default:false"` // Tenant-wide exemption from rate ceilings.
	DefaultRateLimit              *int `gorm:""`                       // Aggregate ceiling across allocations; nil disables the check.
	DefaultRateLimitPeriodMinutes *int `gorm:""`                       // Period the ceiling applies to.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
