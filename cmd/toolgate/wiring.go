package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/toolgate/pkg/admin"
	"github.com/platinummonkey/toolgate/pkg/audit"
	"github.com/platinummonkey/toolgate/pkg/catalog"
	"github.com/platinummonkey/toolgate/pkg/config"
	"github.com/platinummonkey/toolgate/pkg/gate"
	"github.com/platinummonkey/toolgate/pkg/middleware"
	"github.com/platinummonkey/toolgate/pkg/observability"
)

// buildCache selects the tenant cache backend. With a Redis URL configured
// the cache (and rate limit windows) are shared across replicas; without one
// each instance keeps its own LRU.
func buildCache(cfg *config.Config, logger *observability.Logger) (catalog.TenantCache, *redis.Client, error) {
	if cfg.Cache.RedisURL == "" {
		cache, err := catalog.NewMemoryCache(cfg.Cache.Size, cfg.Cache.TTL)
		if err != nil {
			return nil, nil, err
		}
		logger.WithField("size", cfg.Cache.Size).Info("Using in-memory tenant cache")
		return cache, nil, nil
	}

	opts, err := redis.ParseURL(cfg.Cache.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Using Redis tenant cache")
	return catalog.NewRedisCacheWithClient(client, cfg.Cache.TTL), client, nil
}

// buildResolver selects identity resolution for the protocol endpoint.
func buildResolver(ctx context.Context, cfg *config.Config, logger *observability.Logger) (gate.IdentityResolver, error) {
	if cfg.Auth.OIDCIssuerURL != "" {
		resolver, err := gate.NewOIDCResolver(ctx, gate.OIDCResolverConfig{
			IssuerURL: cfg.Auth.OIDCIssuerURL,
			ClientID:  cfg.Auth.OIDCClientID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OIDC resolver: %w", err)
		}
		logger.WithField("issuer", cfg.Auth.OIDCIssuerURL).Info("OIDC identity resolution enabled")
		return resolver, nil
	}

	// Without an issuer every credential resolves to Anonymous and only the
	// public tool list is served.
	logger.Warn("No OIDC issuer configured, all discovery requests are served the public tier")
	return gate.NewStaticResolver(nil), nil
}

// buildAuditLogger fans admin audit events out to a structured log stream
// and the audit_events table.
func buildAuditLogger(db *sql.DB) audit.Logger {
	auditLog := logrus.New()
	auditLog.SetFormatter(&logrus.JSONFormatter{})
	return audit.NewMultiLogger(
		audit.NewLogrusLogger(auditLog),
		audit.NewDBLogger(db),
	)
}

// buildAdminChecker builds the static admin token table from configuration.
func buildAdminChecker(cfg *config.Config) admin.PermissionChecker {
	principals := make(map[string]admin.Principal)
	for i, token := range cfg.Auth.AdminViewTokens {
		principals[token] = admin.Principal{
			Actor:       fmt.Sprintf("view-token-%d", i),
			Permissions: map[admin.Permission]bool{admin.PermissionView: true},
		}
	}
	for i, token := range cfg.Auth.AdminManageTokens {
		principals[token] = admin.Principal{
			Actor:       fmt.Sprintf("manage-token-%d", i),
			Permissions: map[admin.Permission]bool{admin.PermissionManage: true},
		}
	}
	return admin.NewStaticChecker(principals)
}

// rateLimitHandler is implemented by both rate limit middlewares.
type rateLimitHandler interface {
	Handler(next http.Handler) http.Handler
}

// buildAdminLimiter prefers Redis-shared windows when a client is available.
func buildAdminLimiter(redisClient *redis.Client) rateLimitHandler {
	if redisClient != nil {
		return middleware.NewDistributedRateLimitMiddleware(redisClient, middleware.AdminRateLimitConfig(), "toolgate:ratelimit:admin")
	}
	return middleware.NewRateLimitMiddleware(middleware.AdminRateLimitConfig())
}
