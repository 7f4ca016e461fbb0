package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/toolgate/pkg/admin"
	"github.com/platinummonkey/toolgate/pkg/catalog"
	"github.com/platinummonkey/toolgate/pkg/config"
	"github.com/platinummonkey/toolgate/pkg/gate"
	"github.com/platinummonkey/toolgate/pkg/httputil"
	"github.com/platinummonkey/toolgate/pkg/middleware"
	"github.com/platinummonkey/toolgate/pkg/observability"
	"github.com/platinummonkey/toolgate/pkg/registry"
)

const (
	serverName = "toolgate"
	version    = "1.0.0"

	// maxRequestBytes bounds protocol and admin request bodies.
	maxRequestBytes = 1 << 20
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "toolgate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("version", version).Info("Starting toolgate")

	// OpenTelemetry
	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	// Database
	db, err := sql.Open("postgres", cfg.Store.PostgresURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Store.MaxConns)
	db.SetMaxIdleConns(cfg.Store.MaxIdleConns)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("Connected to PostgreSQL")

	if cfg.Store.RunMigration {
		if err := catalog.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("Database migrations applied")
	}

	// Capability registry
	defs := registry.BuiltinDefinitions()
	if cfg.Gating.RegistryFile != "" {
		defs, err = registry.LoadDefinitionFile(cfg.Gating.RegistryFile, defs)
		if err != nil {
			return fmt.Errorf("failed to load registry file: %w", err)
		}
	}
	reg, err := registry.New(defs)
	if err != nil {
		return fmt.Errorf("invalid capability registry: %w", err)
	}

	// Global kill switch, read once; warn on names that match nothing.
	disabled := catalog.NewDisabledSet(cfg.Gating.DisabledTools)
	for _, name := range disabled.Names() {
		if !reg.Has(name) {
			logger.WithField("capability", name).Warn("globally disabled capability is not registered")
		}
	}

	// Metrics
	promRegistry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(promRegistry)
	metrics.CapabilitiesTotal.Set(float64(reg.Len()))
	metrics.GloballyDisabledTotal.Set(float64(disabled.Len()))

	// Tenant cache
	cache, redisClient, err := buildCache(cfg, logger)
	if err != nil {
		return err
	}

	// Selection service
	store := catalog.NewPostgresStore(db, cfg.Store.QueryTimeout)
	selection := catalog.NewSelectionService(store, cache, reg, disabled, cfg.Cache.TTL, logger, metrics)

	if err := selection.EnsureCatalog(ctx, catalog.DefaultEntries(reg.All())); err != nil {
		return err
	}

	// Expired-entry sweeper
	scheduler := cron.New()
	if cfg.Cache.SweepSchedule != "" {
		if _, err := scheduler.AddFunc(cfg.Cache.SweepSchedule, func() {
			defer observability.RecoverPanic(logger, "cache sweep")
			selection.SweepCache(context.Background())
		}); err != nil {
			return fmt.Errorf("invalid cache sweep schedule: %w", err)
		}
		scheduler.Start()
	}

	// Identity resolution
	resolver, err := buildResolver(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Audit
	auditLogger := buildAuditLogger(db)

	// Discovery gate and protocol endpoint
	toolGate := gate.New(reg, selection, resolver, logger, metrics)
	gateHandler := gate.NewHandler(toolGate, serverName, version, logger)

	// Admin API
	checker := buildAdminChecker(cfg)
	adminHandlers := admin.NewHandlers(selection, checker, auditLogger, logger)

	// Router
	router := mux.NewRouter()
	router.Use(httputil.RecoveryMiddleware(logger))
	router.Use(httputil.RequestIDMiddleware)
	router.Use(observability.HTTPMetricsMiddleware(metrics))
	router.Use(httputil.MaxBytesMiddleware(maxRequestBytes))

	discoveryLimiter := middleware.NewRateLimitMiddleware(middleware.DiscoveryRateLimitConfig())
	adminLimiter := buildAdminLimiter(redisClient)
	router.PathPrefix("/api/v1/").Handler(adminLimiter.Handler(adminRouter(adminHandlers)))

	protocolRouter := mux.NewRouter()
	gateHandler.RegisterRoutes(protocolRouter)
	router.PathPrefix("/mcp").Handler(discoveryLimiter.Handler(protocolRouter))

	var handler http.Handler = router
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(router, serverName)
	}

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes
	healthChecker := observability.NewHealthChecker(db, redisClient)
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, healthChecker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, promRegistry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}
	go func() {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()

	// Graceful shutdown
	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		scheduler.Stop()
		return nil
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return auditLogger.Close()
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return redisClient.Close()
		})
	}
	if otelProviders != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server failed")
		}
	}()

	return shutdown.WaitForShutdown()
}

func adminRouter(handlers *admin.Handlers) http.Handler {
	router := mux.NewRouter()
	handlers.RegisterRoutes(router)
	return router
}
