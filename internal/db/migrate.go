package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/identity-console/console/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite, DialectPostgres, "":
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.Admin{},
		&models.Tenant{},
		&models.Client{},
		&models.Scope{},
		&models.OIDCProvider{},
		&models.SigningKey{},
		&models.RateLimitServiceGroup{},
		&models.TenantRateLimit{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	// ddl defines an index statement to apply.
	type ddl struct {
		name string // Human-readable name for error reporting.
		sql  string // SQL to execute.
	}
	ddls := []ddl{
		{
			name: "idx_tenant_rate_limits_tenant_id",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_tenant_rate_limits_tenant_id
				ON tenant_rate_limits (tenant_id)
			`,
		},
		{
			name: "idx_tenant_rate_limits_service_group_id",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_tenant_rate_limits_service_group_id
				ON tenant_rate_limits (service_group_id)
			`,
		},
		{
			name: "idx_rate_limit_service_groups_name",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_rate_limit_service_groups_name
				ON rate_limit_service_groups (name)
			`,
		},
		{
			name: "idx_clients_tenant_id_name",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_clients_tenant_id_name
				ON clients (tenant_id, name)
			`,
		},
		{
			name: "idx_scopes_tenant_id_name",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_scopes_tenant_id_name
				ON scopes (tenant_id, name)
			`,
		},
		{
			name: "idx_signing_keys_tenant_id_status",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_signing_keys_tenant_id_status
				ON signing_keys (tenant_id, status)
			`,
		},
		{
			name: "idx_oidc_providers_tenant_id",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_oidc_providers_tenant_id
				ON oidc_providers (tenant_id)
			`,
		},
	}
	for _, item := range ddls {
		if errDDL := conn.Exec(item.sql).Error; errDDL != nil {
			return fmt.Errorf("db: create index %s: %w", item.name, errDDL)
		}
	}
	return nil
}

// EnsureAdmin seeds an operator account when no admins exist yet. The
// password hash is produced by the caller; existing accounts are never
// touched.
func EnsureAdmin(conn *gorm.DB, username, passwordHash string) error {
	if username == "" || passwordHash == "" {
		return nil
	}
	var count int64
	if errCount := conn.Model(&models.Admin{}).Count(&count).Error; errCount != nil {
		return fmt.Errorf("db: count admins: %w", errCount)
	}
	if count > 0 {
		return nil
	}

	var existing models.Admin
	errFind := conn.Where("username = ?", username).First(&existing).Error
	if errFind == nil {
		return nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: query admin: %w", errFind)
	}

	now := time.Now().UTC()
	admin := models.Admin{
		Username:     username,
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if errCreate := conn.Create(&admin).Error; errCreate != nil {
		return fmt.Errorf("db: create admin: %w", errCreate)
	}
	return nil
}
