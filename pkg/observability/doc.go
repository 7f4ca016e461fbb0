// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Overview
//
// This package centralizes observability infrastructure including JSON logging, metrics
// collection, health checks, and distributed tracing integration.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.Infof("server started on port %s", port)
//
// Context-aware logging:
//
//	logger.WithField("tenant_id", tenantID).WithError(err).Error("resolution failed")
//
// # Prometheus Metrics
//
// Initialize metrics on a dedicated registry:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.HTTPRequestsTotal.WithLabelValues("POST", "/mcp", "200").Inc()
//	metrics.DiscoveryRequestsTotal.WithLabelValues("tenant_member").Inc()
//
// Business metrics:
//
//	metrics.CapabilitiesTotal.Set(float64(registry.Len()))
//	metrics.GloballyDisabledTotal.Set(float64(disabled.Len()))
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	status := checker.Check(ctx)
//	fmt.Println(status.Status)
//
// # OpenTelemetry
//
// Initialize tracing:
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		ServiceName:    "toolgate",
//		ServiceVersion: "1.0.0",
//		Endpoint:       "otel-collector:4317",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/catalog: Cache and store instrumentation
package observability
