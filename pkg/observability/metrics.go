package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Discovery metrics
	DiscoveryRequestsTotal  *prometheus.CounterVec
	DiscoveryFallbacksTotal prometheus.Counter
	DiscoveryListSize       *prometheus.HistogramVec

	// Resolver metrics
	ResolveDuration        prometheus.Histogram
	OverrideMutationsTotal *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal      *prometheus.CounterVec
	CacheMissesTotal    *prometheus.CounterVec
	CacheEvictionsTotal *prometheus.CounterVec

	// Store metrics
	StoreErrorsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Business metrics
	CapabilitiesTotal     prometheus.Gauge
	GloballyDisabledTotal prometheus.Gauge
	AuthFailuresTotal     *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolgate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolgate_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolgate_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Discovery metrics
		DiscoveryRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_discovery_requests_total",
				Help: "Total number of tool discovery requests",
			},
			[]string{"tier"},
		),
		DiscoveryFallbacksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "toolgate_discovery_fallbacks_total",
				Help: "Total number of discovery requests served by the fail-open fallback",
			},
		),
		DiscoveryListSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolgate_discovery_list_size",
				Help:    "Number of tools returned per discovery request",
				Buckets: []float64{0, 5, 10, 20, 30, 50, 100},
			},
			[]string{"tier"},
		),

		// Resolver metrics
		ResolveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "toolgate_resolve_duration_seconds",
				Help:    "Time to resolve a tenant's effective capability set",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		OverrideMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_override_mutations_total",
				Help: "Total number of tenant override mutations",
			},
			[]string{"action"},
		),

		// Cache metrics
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
		CacheEvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_cache_evictions_total",
				Help: "Total number of cache evictions",
			},
			[]string{"cache"},
		),

		// Store metrics
		StoreErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_store_errors_total",
				Help: "Total number of backing store errors",
			},
			[]string{"operation"},
		),

		// Database metrics
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolgate_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolgate_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),

		// Business metrics
		CapabilitiesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolgate_capabilities_total",
				Help: "Total number of registered capabilities",
			},
		),
		GloballyDisabledTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolgate_globally_disabled_total",
				Help: "Number of globally disabled capabilities",
			},
		),
		AuthFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_auth_failures_total",
				Help: "Total number of failed credential validations",
			},
			[]string{"reason"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.DiscoveryRequestsTotal,
		m.DiscoveryFallbacksTotal,
		m.DiscoveryListSize,
		m.ResolveDuration,
		m.OverrideMutationsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheEvictionsTotal,
		m.StoreErrorsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.CapabilitiesTotal,
		m.GloballyDisabledTotal,
		m.AuthFailuresTotal,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status and size
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// Record request size
			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(r.ContentLength))
			}

			// Serve the request
			next.ServeHTTP(rw, r)

			// Record metrics
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
