// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings. TOOLGATE_POSTGRES_URL is the only
// required variable.
//
// # Configuration Structure
//
// Server settings:
//
//	TOOLGATE_HOST="0.0.0.0"
//	TOOLGATE_PORT="8080"
//	TOOLGATE_HEALTH_PORT="9090"
//	TOOLGATE_READ_TIMEOUT="15s"
//	TOOLGATE_WRITE_TIMEOUT="15s"
//	TOOLGATE_SHUTDOWN_TIMEOUT="30s"
//
// Store settings:
//
//	TOOLGATE_POSTGRES_URL="postgres://localhost/toolgate"
//	TOOLGATE_POSTGRES_MAX_CONNS="25"
//	TOOLGATE_POSTGRES_MAX_IDLE_CONNS="5"
//	TOOLGATE_STORE_TIMEOUT="3s"
//	TOOLGATE_RUN_MIGRATIONS="true"
//
// Cache settings:
//
//	TOOLGATE_REDIS_URL=""           # empty selects the in-process LRU
//	TOOLGATE_CACHE_TTL="5m"
//	TOOLGATE_CACHE_SIZE="1000"
//	TOOLGATE_CACHE_SWEEP="@every 1m"
//
// Gating settings:
//
//	TOOLGATE_DISABLED_TOOLS="forecast,export_dataset"
//	TOOLGATE_REGISTRY_FILE="/etc/toolgate/capabilities.yaml"
//
// Auth settings:
//
//	TOOLGATE_OIDC_ISSUER="https://issuer.example.com"
//	TOOLGATE_OIDC_CLIENT_ID="toolgate"
//	TOOLGATE_ADMIN_VIEW_TOKENS="ro-token-1,ro-token-2"
//	TOOLGATE_ADMIN_MANAGE_TOKENS="rw-token-1"
//
// Observability settings:
//
//	TOOLGATE_LOG_LEVEL="info"  # debug, info, warn, error
//	TOOLGATE_METRICS_ENABLED="true"
//	TOOLGATE_OTEL_ENABLED="false"
//	TOOLGATE_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Cache TTL: %s\n", cfg.Cache.TTL)
//	fmt.Printf("Disabled tools: %v\n", cfg.Gating.DisabledTools)
//
// # Related Packages
//
//   - pkg/catalog: Uses store, cache, and gating configuration
//   - pkg/observability: Uses observability configuration
package config
