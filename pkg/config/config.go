package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config aggregates all configuration sections, loaded once at startup.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Engine   EngineConfig
	Notify   NotifyConfig
}

// Load reads the full configuration from the environment.
func Load() *Config {
	return &Config{
		Server:   loadServerConfig(),
		Database: loadDatabaseConfig(),
		Redis:    loadRedisConfig(),
		Engine:   loadEngineConfig(),
		Notify:   loadNotifyConfig(),
	}
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        string
	AppName     string
	CORSOrigins string
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:        getEnv("PORT", "8080"),
		AppName:     getEnv("APP_NAME", "Gatehouse API"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
	}
}

// DatabaseConfig configures the canonical Postgres store.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "gatehouse"),
		Password:        getEnv("DB_PASSWORD", ""),
		Name:            getEnv("DB_NAME", "gatehouse"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
	}
}

// RedisConfig configures the shared cache.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Address renders the host:port pair for the Redis client.
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnvInt("REDIS_PORT", 6379),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}
}

// EngineConfig holds the authorization engine tunables.
type EngineConfig struct {
	// TokenSigningKey verifies bearer token signatures (HS256).
	TokenSigningKey string

	// TenantCacheTTL bounds cached tenant connection descriptors.
	TenantCacheTTL time.Duration

	// AddressMarkerTTL bounds the "seen address" markers used for
	// new-address notifications.
	AddressMarkerTTL time.Duration

	// ScopeGraphPath optionally points at a JSON scope hierarchy file.
	// Empty means the built-in platform graph is used.
	ScopeGraphPath string
}

func loadEngineConfig() EngineConfig {
	return EngineConfig{
		TokenSigningKey:  getEnv("TOKEN_SIGNING_KEY", ""),
		TenantCacheTTL:   getEnvDuration("TENANT_CACHE_TTL", time.Hour),
		AddressMarkerTTL: getEnvDuration("ADDRESS_MARKER_TTL", 24*time.Hour),
		ScopeGraphPath:   getEnv("SCOPE_GRAPH_PATH", ""),
	}
}

// NotifyConfig configures outbound notifications.
type NotifyConfig struct {
	Provider    string // "ses" or "console"
	FromAddress string
	AWSRegion   string
}

func loadNotifyConfig() NotifyConfig {
	return NotifyConfig{
		Provider:    getEnv("NOTIFY_PROVIDER", "console"),
		FromAddress: getEnv("NOTIFY_FROM_ADDRESS", "no-reply@gatehouse.dev"),
		AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
