package models

import "time"

// RateLimitServiceGroup is a named, reusable rate limit definition that can
// be allocated to multiple tenants.
type RateLimitServiceGroup struct {
	ID string `gorm:"type:text;primaryKey"` // Opaque service group identifier.

	Name        string `gorm:"type:text;not null;index"` // Display name (sort key, not enforced unique).
	Description string `gorm:"type:text"`                // Free-form description.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TenantRateLimit allocates a service group to a tenant with concrete
// limit/period values. At most one row exists per (tenant, service group).
type TenantRateLimit struct {
	TenantID       string `gorm:"type:text;primaryKey"` // Tenant reference.
	ServiceGroupID string `gorm:"type:text;primaryKey"` // Service group reference.

	AllowUnlimitedRate     bool `gorm:"not null;default:false"` // Exempts this allocation from numeric limits.
	RateLimit              *int `gorm:""`                       // Requests per period; ignored when unlimited.
	RateLimitPeriodMinutes *int `gorm:""`                       // Rate window length in minutes.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
