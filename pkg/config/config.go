package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ledgerline/tenantguard/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Authz         AuthzConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the membership view cache settings. Redis is
// optional; an empty URL disables the view.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

// AuthzConfig holds policy and enforcement settings
type AuthzConfig struct {
	// PolicyFile is the path to the declarative policy YAML
	PolicyFile string
	// WatchPolicyFile reloads the policy file on change
	WatchPolicyFile bool
	RoleCacheSize   int
	RoleCacheTTL    time.Duration
	ViewKeyTTL      time.Duration
	// ViewRefreshSchedule is a cron expression; empty disables the
	// periodic membership view rebuild
	ViewRefreshSchedule string
}

// AuditConfig holds audit sink settings
type AuditConfig struct {
	// Enabled controls the database audit sink
	Enabled bool
	// FilePath, when set, adds an NDJSON file sink
	FilePath string
	// LogAllRequests audits every HTTP request, not just mutations
	LogAllRequests bool
	RetentionDays  int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Authz:         loadAuthzConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("TENANTGUARD_HOST", "0.0.0.0"),
		Port:            getEnv("TENANTGUARD_PORT", "8080"),
		ReadTimeout:     getEnvDuration("TENANTGUARD_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("TENANTGUARD_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("TENANTGUARD_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("TENANTGUARD_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("TENANTGUARD_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:             getEnv("TENANTGUARD_POSTGRES_URL", ""),
		MaxOpenConns:    getEnvInt("TENANTGUARD_POSTGRES_MAX_CONNS", 25),
		MaxIdleConns:    getEnvInt("TENANTGUARD_POSTGRES_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("TENANTGUARD_POSTGRES_CONN_LIFETIME", 5*time.Minute),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:      getEnv("TENANTGUARD_REDIS_URL", ""),
		Password: getEnv("TENANTGUARD_REDIS_PASSWORD", ""),
		DB:       getEnvInt("TENANTGUARD_REDIS_DB", 0),
		PoolSize: getEnvInt("TENANTGUARD_REDIS_POOL_SIZE", 10),
	}
}

func loadAuthzConfig() AuthzConfig {
	return AuthzConfig{
		PolicyFile:          getEnv("TENANTGUARD_POLICY_FILE", ""),
		WatchPolicyFile:     getEnvBool("TENANTGUARD_POLICY_WATCH", false),
		RoleCacheSize:       getEnvInt("TENANTGUARD_ROLE_CACHE_SIZE", 4096),
		RoleCacheTTL:        getEnvDuration("TENANTGUARD_ROLE_CACHE_TTL", 10*time.Second),
		ViewKeyTTL:          getEnvDuration("TENANTGUARD_VIEW_KEY_TTL", 24*time.Hour),
		ViewRefreshSchedule: getEnv("TENANTGUARD_VIEW_REFRESH_SCHEDULE", ""),
	}
}

func loadAuditConfig() AuditConfig {
	return AuditConfig{
		Enabled:        getEnvBool("TENANTGUARD_AUDIT_ENABLED", true),
		FilePath:       getEnv("TENANTGUARD_AUDIT_FILE", ""),
		LogAllRequests: getEnvBool("TENANTGUARD_AUDIT_ALL_REQUESTS", false),
		RetentionDays:  getEnvInt("TENANTGUARD_AUDIT_RETENTION_DAYS", 90),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       ParseLogLevel(getEnv("TENANTGUARD_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("TENANTGUARD_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Authz.RoleCacheSize < 0 {
		return fmt.Errorf("role cache size must not be negative")
	}
	if c.Authz.RoleCacheTTL <= 0 {
		return fmt.Errorf("role cache TTL must be positive")
	}

	if c.Audit.RetentionDays <= 0 {
		return fmt.Errorf("audit retention days must be positive")
	}

	return nil
}

// ParseLogLevel parses a log level string
func ParseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
