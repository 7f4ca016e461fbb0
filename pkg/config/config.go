package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/toolgate/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Store configuration
	Store StoreConfig

	// Cache configuration
	Cache CacheConfig

	// Gating configuration
	Gating GatingConfig

	// Auth configuration
	Auth AuthConfig

	// Observability configuration
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

// StoreConfig holds PostgreSQL settings
type StoreConfig struct {
	PostgresURL  string
	MaxConns     int
	MaxIdleConns int
	QueryTimeout time.Duration
	RunMigration bool
}

// CacheConfig holds tenant cache settings
type CacheConfig struct {
	// RedisURL, when set, selects the Redis-backed cache; empty selects the
	// in-process LRU.
	RedisURL string
	TTL      time.Duration
	Size     int

	// SweepSchedule is a cron expression for expired-entry eviction.
	// Empty disables the sweeper.
	SweepSchedule string
}

// GatingConfig holds capability gating settings
type GatingConfig struct {
	// DisabledTools is the process-wide kill switch, comma-separated in the
	// environment. Read once at start; changing it requires a restart.
	DisabledTools []string

	// RegistryFile optionally overlays the built-in capability definitions.
	RegistryFile string
}

// AuthConfig holds identity resolution settings
type AuthConfig struct {
	// OIDCIssuerURL enables OIDC token validation on the protocol endpoint.
	// Empty falls back to the static resolver (development only).
	OIDCIssuerURL string
	OIDCClientID  string

	// Static admin API tokens, comma-separated in the environment. View
	// tokens may read catalog and tenant state; manage tokens may also
	// mutate overrides.
	AdminViewTokens   []string
	AdminManageTokens []string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Store:         loadStoreConfig(),
		Cache:         loadCacheConfig(),
		Gating:        loadGatingConfig(),
		Auth:          loadAuthConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("TOOLGATE_HOST", "0.0.0.0"),
		Port:            getEnv("TOOLGATE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("TOOLGATE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("TOOLGATE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("TOOLGATE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("TOOLGATE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("TOOLGATE_HEALTH_PORT", "9090"),
	}
}

// loadStoreConfig loads PostgreSQL configuration from environment
func loadStoreConfig() StoreConfig {
	return StoreConfig{
		PostgresURL:  getEnv("TOOLGATE_POSTGRES_URL", ""),
		MaxConns:     getEnvInt("TOOLGATE_POSTGRES_MAX_CONNS", 25),
		MaxIdleConns: getEnvInt("TOOLGATE_POSTGRES_MAX_IDLE_CONNS", 5),
		QueryTimeout: getEnvDuration("TOOLGATE_STORE_TIMEOUT", 3*time.Second),
		RunMigration: getEnvBool("TOOLGATE_RUN_MIGRATIONS", true),
	}
}

// loadCacheConfig loads tenant cache configuration from environment
func loadCacheConfig() CacheConfig {
	return CacheConfig{
		RedisURL:      getEnv("TOOLGATE_REDIS_URL", ""),
		TTL:           getEnvDuration("TOOLGATE_CACHE_TTL", 5*time.Minute),
		Size:          getEnvInt("TOOLGATE_CACHE_SIZE", 1000),
		SweepSchedule: getEnv("TOOLGATE_CACHE_SWEEP", "@every 1m"),
	}
}

// loadGatingConfig loads gating configuration from environment
func loadGatingConfig() GatingConfig {
	return GatingConfig{
		DisabledTools: splitList(getEnv("TOOLGATE_DISABLED_TOOLS", "")),
		RegistryFile:  getEnv("TOOLGATE_REGISTRY_FILE", ""),
	}
}

// loadAuthConfig loads identity configuration from environment
func loadAuthConfig() AuthConfig {
	return AuthConfig{
		OIDCIssuerURL:     getEnv("TOOLGATE_OIDC_ISSUER", ""),
		OIDCClientID:      getEnv("TOOLGATE_OIDC_CLIENT_ID", ""),
		AdminViewTokens:   splitList(getEnv("TOOLGATE_ADMIN_VIEW_TOKENS", "")),
		AdminManageTokens: splitList(getEnv("TOOLGATE_ADMIN_MANAGE_TOKENS", "")),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("TOOLGATE_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("TOOLGATE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("TOOLGATE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("TOOLGATE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("TOOLGATE_OTEL_SERVICE_NAME", "toolgate"),
		OTelServiceVersion: getEnv("TOOLGATE_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("TOOLGATE_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Store.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("cache size must be positive")
	}

	if c.Auth.OIDCIssuerURL != "" && c.Auth.OIDCClientID == "" {
		return fmt.Errorf("OIDC client ID is required when an OIDC issuer is configured")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
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

// splitList splits a comma-separated environment value, dropping empty
// elements.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
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
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
