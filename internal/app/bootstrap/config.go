// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for environment variables.
const EnvVarPrefix = "STRATADRIVE"

// Storage backends accepted by storage_type.
const (
	StorageGridFS = "gridfs"
	StorageLocal  = "local"
	StorageS3     = "s3"
)

// appConfigKeys defines the configuration keys for this application.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, trash_retention, etc.
//   - Environment variables: STRATADRIVE_MONGO_URI, STRATADRIVE_TRASH_RETENTION, etc.
//   - Command-line flags: --mongo_uri, --trash_retention, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "stratadrive", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "stratadrive-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie max age (e.g., 24h, 720h, 30m)"},

	{Name: "csrf_key", Default: "dev-only-csrf-key-please-change-0123456789", Desc: "CSRF token signing key (32+ chars in production)"},

	// Rate limiting configuration
	{Name: "rate_limit_enabled", Default: true, Desc: "Enable rate limiting for login attempts"},
	{Name: "rate_limit_login_attempts", Default: 5, Desc: "Max failed login attempts before lockout"},
	{Name: "rate_limit_login_window", Default: "15m", Desc: "Time window for counting failed attempts"},
	{Name: "rate_limit_login_lockout", Default: "15m", Desc: "Lockout duration after exceeding limit"},

	// Blob storage configuration
	{Name: "storage_type", Default: StorageGridFS, Desc: "Blob backend: 'gridfs', 'local' or 's3'"},
	{Name: "storage_gridfs_bucket", Default: "blobs", Desc: "GridFS bucket name"},
	{Name: "storage_local_path", Default: "./uploads", Desc: "Local storage path for file content"},
	{Name: "storage_local_url", Default: "/files", Desc: "URL prefix recorded for local objects"},
	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "drive/", Desc: "S3 key prefix"},

	// Drive behaviour
	{Name: "max_upload_size", Default: 32 << 20, Desc: "Largest accepted upload in bytes"},
	{Name: "trash_retention", Default: "24h", Desc: "How long trashed items are kept before purge"},
	{Name: "trash_sweep_interval", Default: "15m", Desc: "How often expired trash is purged"},
	{Name: "orphan_reap_interval", Default: "1h", Desc: "How often orphaned blobs are retried"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, STRATADRIVE_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 24*time.Hour),

		CSRFKey: appValues.String("csrf_key"),

		// Rate limiting
		RateLimitEnabled:       appValues.Bool("rate_limit_enabled"),
		RateLimitLoginAttempts: appValues.Int("rate_limit_login_attempts"),
		RateLimitLoginWindow:   appValues.Duration("rate_limit_login_window", 15*time.Minute),
		RateLimitLoginLockout:  appValues.Duration("rate_limit_login_lockout", 15*time.Minute),

		// Blob storage
		StorageType:         strings.ToLower(strings.TrimSpace(appValues.String("storage_type"))),
		StorageGridFSBucket: appValues.String("storage_gridfs_bucket"),
		StorageLocalPath:    appValues.String("storage_local_path"),
		StorageLocalURL:     appValues.String("storage_local_url"),
		StorageS3Region:     appValues.String("storage_s3_region"),
		StorageS3Bucket:     appValues.String("storage_s3_bucket"),
		StorageS3Prefix:     appValues.String("storage_s3_prefix"),

		// Drive behaviour
		MaxUploadSize:      int64(appValues.Int("max_upload_size")),
		TrashRetention:     appValues.Duration("trash_retention", 24*time.Hour),
		TrashSweepInterval: appValues.Duration("trash_sweep_interval", 15*time.Minute),
		OrphanReapInterval: appValues.Duration("orphan_reap_interval", time.Hour),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if err := validateAppConfig(appCfg); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}
	return nil
}

// validateAppConfig checks the settings that do not need WAFFLE.
func validateAppConfig(cfg AppConfig) error {
	switch cfg.StorageType {
	case StorageGridFS:
		if cfg.StorageGridFSBucket == "" {
			return fmt.Errorf("storage_gridfs_bucket is required for gridfs storage")
		}
	case StorageLocal:
		if cfg.StorageLocalPath == "" {
			return fmt.Errorf("storage_local_path is required for local storage")
		}
	case StorageS3:
		if cfg.StorageS3Region == "" || cfg.StorageS3Bucket == "" {
			return fmt.Errorf("storage_s3_region and storage_s3_bucket are required for s3 storage")
		}
	default:
		return fmt.Errorf("unknown storage_type %q (want gridfs, local or s3)", cfg.StorageType)
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"session_max_age", cfg.SessionMaxAge},
		{"trash_retention", cfg.TrashRetention},
		{"trash_sweep_interval", cfg.TrashSweepInterval},
		{"orphan_reap_interval", cfg.OrphanReapInterval},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", d.name, d.d)
		}
	}

	if cfg.MaxUploadSize <= 0 {
		return fmt.Errorf("max_upload_size must be positive, got %d", cfg.MaxUploadSize)
	}
	if cfg.RateLimitEnabled && cfg.RateLimitLoginAttempts <= 0 {
		return fmt.Errorf("rate_limit_login_attempts must be positive when rate limiting is enabled")
	}
	return nil
}
