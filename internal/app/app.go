package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/identity-console/console/internal/config"
	"github.com/identity-console/console/internal/db"
	adminapi "github.com/identity-console/console/internal/http/api/admin"
	handlers "github.com/identity-console/console/internal/http/api/admin/handlers"
	"github.com/identity-console/console/internal/ratelimit"
	"github.com/identity-console/console/internal/security"
	"github.com/identity-console/console/internal/store"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the console API server.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errSeed := seedBootstrapAdmin(conn, configPath); errSeed != nil {
		return errSeed
	}

	jwtConfig, _ := config.LoadJWTConfig(configPath)
	if jwtConfig.Secret == "" {
		log.Warn("jwt secret not configured, admin logins will fail")
	}

	groupStore, allocator, errBackend := buildRateLimitBackend(conn, configPath)
	if errBackend != nil {
		return errBackend
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	adminapi.RegisterAdminRoutes(engine, conn, jwtConfig, groupStore, allocator)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("starting console with config=%s port=%d", configPath, port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// buildRateLimitBackend wires the rate limit repositories per the configured
// storage backend. The database backend runs mutations in transactions; the
// file backend serves the legacy flat JSON file with tenants still read from
// the database.
func buildRateLimitBackend(conn *gorm.DB, configPath string) (handlers.GroupStore, handlers.Allocator, error) {
	storageCfg, errStorage := config.LoadRateLimitStorage(configPath)
	if errStorage != nil {
		return nil, nil, errStorage
	}

	switch storageCfg.Backend {
	case config.StorageFile:
		fileStore, errOpen := store.OpenFileStore(storageCfg.Path)
		if errOpen != nil {
			return nil, nil, errOpen
		}
		tenants := store.NewGormStore(conn)
		log.Infof("rate limit storage: file path=%s", storageCfg.Path)
		return fileStore, ratelimit.NewEngine(tenants, fileStore, fileStore), nil
	default:
		return store.NewGormStore(conn), store.NewAtomicEngine(conn), nil
	}
}

// seedBootstrapAdmin creates the first operator account when the config names
// one and no admins exist yet.
func seedBootstrapAdmin(conn *gorm.DB, configPath string) error {
	bootstrap := config.LoadBootstrapAdmin(configPath)
	if bootstrap.Username == "" || bootstrap.Password == "" {
		return nil
	}
	hash, errHash := security.HashPassword(bootstrap.Password)
	if errHash != nil {
		return errHash
	}
	return db.EnsureAdmin(conn, bootstrap.Username, hash)
}

// requestLogger emits one structured log line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		}).Info("request")
	}
}
