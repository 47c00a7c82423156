package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"uplregistry/pkg/database"
)

// StorageBackend selects which Store implementation backs the registry.
type StorageBackend string

const (
	StorageBackendFile     StorageBackend = "file"
	StorageBackendPostgres StorageBackend = "postgres"
)

// Config holds the registry's environment-driven configuration.
type Config struct {
	BindAddr    string `env:"BIND_ADDR" envDefault:":8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	StorageBackend     string `env:"STORAGE_BACKEND" envDefault:"file"`
	StorageActivePath  string `env:"STORAGE_ACTIVE_PATH" envDefault:"./data/active"`
	StorageArchivePath string `env:"STORAGE_ARCHIVE_PATH" envDefault:"./data/archive"`
	DatabaseURL        string `env:"DATABASE_URL" envDefault:"postgres://localhost/uplregistry?sslmode=disable"`

	ArchiveStorageProvider string `env:"ARCHIVE_STORAGE_PROVIDER" envDefault:"s3"`
	S3ArchiveBucket        string `env:"S3_ARCHIVE_BUCKET"`
	S3ArchivePrefix        string `env:"S3_ARCHIVE_PREFIX"`
	S3ArchiveRegion        string `env:"S3_ARCHIVE_REGION" envDefault:"us-east-1"`
	S3ArchiveEndpoint      string `env:"S3_ARCHIVE_ENDPOINT"`
	S3ArchiveAccessKey     string `env:"S3_ARCHIVE_ACCESS_KEY"`
	S3ArchiveSecretKey     string `env:"S3_ARCHIVE_SECRET_KEY"`

	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`

	RateLimitEnabled  bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS      int           `env:"RATE_LIMIT_RPS" envDefault:"600"`
	RateLimitBurst    int           `env:"RATE_LIMIT_BURST" envDefault:"600"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	MetricsPath    string `env:"METRICS_PATH" envDefault:"/metrics"`
	TracingEnabled bool   `env:"TRACING_ENABLED" envDefault:"false"`
	TracingURL     string `env:"TRACING_URL"`

	ReadCacheEnabled bool          `env:"READ_CACHE_ENABLED" envDefault:"true"`
	ReadCacheTTL     time.Duration `env:"READ_CACHE_TTL" envDefault:"5m"`

	// AuditEnabled only takes effect when STORAGE_BACKEND is postgres:
	// the audit trail shares the same connection pool and has no file-backed form.
	AuditEnabled bool `env:"AUDIT_ENABLED" envDefault:"false"`

	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"*"`
	CORSMethods []string `env:"CORS_METHODS" envDefault:"GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	CORSHeaders []string `env:"CORS_HEADERS" envDefault:"Origin,Content-Type,Accept"`
}

// Load reads a .env file if present, then applies process environment
// overrides, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch StorageBackend(c.StorageBackend) {
	case StorageBackendFile, StorageBackendPostgres:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StorageBackendFile, StorageBackendPostgres, c.StorageBackend)
	}
	if StorageBackend(c.StorageBackend) == StorageBackendPostgres && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND is %q", StorageBackendPostgres)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return strings.ToLower(c.Environment) == "development"
}

func (c *Config) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

func (c *Config) ArchiveExportEnabled() bool {
	return c.S3ArchiveBucket != ""
}

// GetDatabaseConfig returns the connection pool configuration for the
// Postgres storage backend.
func (c *Config) GetDatabaseConfig() database.Config {
	return database.Config{
		URL:             c.DatabaseURL,
		MaxConnections:  20,
		MinConnections:  5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
		SSLMode:         "prefer",
	}
}
