package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names recognized by the console.
const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvJWTSecret    = "JWT_SECRET"
	EnvJWTExpiry    = "JWT_EXPIRY"
)

// Rate limit storage backends selectable at composition time.
const (
	// StorageDB keeps service groups and allocations in the relational database.
	StorageDB = "db"
	// StorageFile keeps them in the legacy flat JSON file.
	StorageFile = "file"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// RateLimitStorageConfig selects the backing store for the rate limit
// repositories and, for the file backend, its path.
type RateLimitStorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// BootstrapAdminConfig optionally seeds the first operator account.
type BootstrapAdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 30 * 24 * time.Hour

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings.
	type fileConfig struct {
		JWT JWTConfig `yaml:"jwt"`
	}

	result := JWTConfig{Expiry: defaultJWTExpiry}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.JWT
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}

// LoadRateLimitStorage loads the rate limit storage selection. Defaults to
// the database backend.
func LoadRateLimitStorage(configPath string) (RateLimitStorageConfig, error) {
	// fileConfig maps the YAML fields needed for storage selection.
	type fileConfig struct {
		RateLimitStorage RateLimitStorageConfig `yaml:"rate-limit-storage"`
	}

	result := RateLimitStorageConfig{Backend: StorageDB}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil && strings.TrimSpace(cfg.RateLimitStorage.Backend) != "" {
			result = cfg.RateLimitStorage
		}
	}

	result.Backend = strings.ToLower(strings.TrimSpace(result.Backend))
	switch result.Backend {
	case StorageDB:
	case StorageFile:
		if strings.TrimSpace(result.Path) == "" {
			result.Path = filepath.Join(filepath.Dir(configPath), "ratelimits.json")
		}
	default:
		return result, fmt.Errorf("unknown rate limit storage backend: %q", result.Backend)
	}
	return result, nil
}

// LoadBootstrapAdmin loads optional first-run admin credentials.
func LoadBootstrapAdmin(configPath string) BootstrapAdminConfig {
	// fileConfig maps the YAML fields needed for the bootstrap admin.
	type fileConfig struct {
		BootstrapAdmin BootstrapAdminConfig `yaml:"bootstrap-admin"`
	}

	var result BootstrapAdminConfig
	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.BootstrapAdmin
		}
	}
	result.Username = strings.TrimSpace(result.Username)
	return result
}
