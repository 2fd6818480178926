package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the ingestion pipeline's environment-driven settings.
type Config struct {
	AppEnv   string
	LogLevel string

	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StorageBaseDirectory  string
	StorageCacheDirectory string
	StorageTempDirectory  string
	StoragePattern        string

	Host string
	Port string

	OAuthJWKSURL   string
	OAuthClientID  string
	MetadataToolPath string

	ReconcileInterval time.Duration
}

const defaultPattern = "/<album_year>/<album>/<month><day>/<camera_make>_<camera_model>/<filename>.<extension>"

// Load reads configuration from the process environment, applying the
// same defaults the original service used for storage paths.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:                os.Getenv("APP_ENV"),
		LogLevel:              os.Getenv("LOG_LEVEL"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		StorageBaseDirectory:  os.Getenv("STORAGE_BASE_DIRECTORY"),
		StorageCacheDirectory: os.Getenv("STORAGE_CACHE_DIRECTORY"),
		StorageTempDirectory:  os.Getenv("STORAGE_TEMP_DIRECTORY"),
		StoragePattern:        os.Getenv("STORAGE_PATTERN"),
		Host:                  os.Getenv("HOST"),
		Port:                  os.Getenv("PORT"),
		OAuthJWKSURL:          os.Getenv("OAUTH_JWKS_URL"),
		OAuthClientID:         os.Getenv("OAUTH_CLIENT_ID"),
		MetadataToolPath:      os.Getenv("METADATA_TOOL_PATH"),
	}

	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.StorageBaseDirectory == "" {
		cfg.StorageBaseDirectory = "/storage/originals"
	}
	if cfg.StorageCacheDirectory == "" {
		cfg.StorageCacheDirectory = "/storage/cache"
	}
	if cfg.StorageTempDirectory == "" {
		cfg.StorageTempDirectory = "/storage/tmp"
	}
	if cfg.StoragePattern == "" {
		cfg.StoragePattern = defaultPattern
	}
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.MetadataToolPath == "" {
		cfg.MetadataToolPath = "exiftool"
	}

	cfg.DBMaxOpenConns = 4
	cfg.DBMaxIdleConns = 4
	if v := os.Getenv("DB_MAX_OPEN_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
		}
		cfg.DBMaxOpenConns = n
	}

	cfg.ReconcileInterval = 5 * time.Minute
	if v := os.Getenv("RECONCILE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RECONCILE_INTERVAL: %w", err)
		}
		cfg.ReconcileInterval = d
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = n
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("missing required environment variable DATABASE_URL")
	}

	return cfg, nil
}
