package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/bbus-fleet/backend/internal/models"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	Sources  SourcesConfig
	Identity IdentityConfig
	Orders   OrdersConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int // 0 keeps the pgx default
}

// RedisConfig holds Redis connection settings. Addr empty disables the directory cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// SessionConfig holds the secret shared with the auth provider that signs dashboard sessions.
type SessionConfig struct {
	JWTSecret string
}

// SourcesConfig holds the static keys accepted on /sources webhooks.
type SourcesConfig struct {
	PrivateAPIKey string
	PublicAPIKey  string
	MaxBodyBytes  int64
}

// IdentityConfig holds the service identity used as actor for webhook-driven writes.
type IdentityConfig struct {
	SystemUserID          string
	DefaultOrganizationID uuid.UUID
	DefaultRouteID        uuid.UUID
}

// OrdersConfig holds order ingestion settings.
type OrdersConfig struct {
	Location *time.Location // timezone the external DD.MM.YYYY HH.MM.SS timestamps are expressed in
}

// ServiceIdentity converts the identity settings into the value passed to the core.
func (c IdentityConfig) ServiceIdentity() models.ServiceIdentity {
	return models.ServiceIdentity{
		ActorID:               c.SystemUserID,
		DefaultOrganizationID: c.DefaultOrganizationID,
		DefaultRouteID:        c.DefaultRouteID,
	}
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	defaultOrg, err := getEnvUUID("DEFAULT_CLIENT_ID")
	if err != nil {
		return nil, err
	}
	defaultRoute, err := getEnvUUID("DEFAULT_ROUTE_ID")
	if err != nil {
		return nil, err
	}
	loc, err := loadLocation(getEnv("ORDER_TIMEZONE", "Local"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "fleet"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 0),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			CacheTTL: time.Duration(getEnvInt("DIRECTORY_CACHE_TTL_SEC", 300)) * time.Second,
		},
		Session: SessionConfig{
			JWTSecret: getEnv("SESSION_JWT_SECRET", "change-me-in-production"),
		},
		Sources: SourcesConfig{
			PrivateAPIKey: os.Getenv("BBUS_API_KEY"),
			PublicAPIKey:  os.Getenv("NEXT_PUBLIC_BBUS_API_KEY"),
			MaxBodyBytes:  int64(getEnvInt("SOURCES_MAX_BODY_BYTES", 1<<20)),
		},
		Identity: IdentityConfig{
			SystemUserID:          os.Getenv("SYSTEM_USER_ID"),
			DefaultOrganizationID: defaultOrg,
			DefaultRouteID:        defaultRoute,
		},
		Orders: OrdersConfig{
			Location: loc,
		},
	}
	return cfg, nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("ORDER_TIMEZONE: %w", err)
	}
	return loc, nil
}

func getEnvUUID(key string) (uuid.UUID, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s must be a UUID: %w", key, err)
	}
	return id, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
