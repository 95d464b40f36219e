// Package monitoring provides Prometheus metrics for the authorization
// service.
//
// Usage:
//
//  1. Setup metrics in your main function:
//     router := gin.New()
//     monitoring.SetupPrometheusMetrics(router)
//
//  2. Add HTTP metrics middleware:
//     router.Use(monitoring.HTTPMetricsMiddleware())
//
//  3. Record domain metrics where decisions happen:
//     monitoring.RecordDecision("allowed", "", time.Since(start))
//     monitoring.RecordDecision("denied", "permission_denied", time.Since(start))
//     monitoring.RecordCacheOperation("get", "hit")
//     monitoring.RecordSyncRun(created, updated, time.Since(start), true)
//
// Available metrics:
//
// HTTP:
//   - rbac_core_http_requests_total{method, endpoint, status_code, tenant_id}
//   - rbac_core_http_request_duration_seconds{method, endpoint, tenant_id}
//   - rbac_core_active_connections
//
// Authorization:
//   - rbac_core_authz_decisions_total{verdict, violation}
//   - rbac_core_authz_decision_duration_seconds{verdict}
//
// Cache:
//   - rbac_core_cache_operations_total{operation, result}
//
// Catalog sync:
//   - rbac_core_catalog_sync_runs_total{status}
//   - rbac_core_catalog_sync_duration_seconds
//   - rbac_core_catalog_entries_written_total{kind}
//
// Errors:
//   - rbac_core_errors_total{type, component}
package monitoring

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rbac_core_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code", "tenant_id"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rbac_core_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "tenant_id"},
	)

	// Decision metrics. The violation label is empty for allows and one of
	// the stable violation kinds for denials.
	authzDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rbac_core_authz_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"verdict", "violation"},
	)

	authzDecisionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rbac_core_authz_decision_duration_seconds",
			Help:    "Authorization decision duration in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"verdict"},
	)

	cacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rbac_core_cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"operation", "result"}, // result: hit, miss, error
	)

	syncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rbac_core_catalog_sync_runs_total",
			Help: "Total number of endpoint catalog sync runs",
		},
		[]string{"status"}, // status: success, error
	)

	syncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rbac_core_catalog_sync_duration_seconds",
			Help:    "Endpoint catalog sync duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	syncEntriesWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rbac_core_catalog_entries_written_total",
			Help: "Catalog rows created or updated by sync runs",
		},
		[]string{"kind"}, // kind: created, updated
	)

	activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rbac_core_active_connections",
			Help: "Number of active connections",
		},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rbac_core_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"},
	)
)

// SetupPrometheusMetrics registers the service metrics and exposes the
// /metrics endpoint on the router.
func SetupPrometheusMetrics(router gin.IRoutes) {
	// Register build info (ignore if already registered).
	_ = prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "rbac_core_build_info",
		Help: "Build information for rbac-core",
		ConstLabels: prometheus.Labels{
			"version":   "v1.0.0",
			"component": "rbac-core",
		},
	}, func() float64 { return 1 }))

	// Duplicate registration is not an error worth failing startup over.
	_ = prometheus.Register(httpRequestsTotal)
	_ = prometheus.Register(httpRequestDuration)
	_ = prometheus.Register(authzDecisionsTotal)
	_ = prometheus.Register(authzDecisionDuration)
	_ = prometheus.Register(cacheOperationsTotal)
	_ = prometheus.Register(syncRunsTotal)
	_ = prometheus.Register(syncDuration)
	_ = prometheus.Register(syncEntriesWritten)
	_ = prometheus.Register(activeConnections)
	_ = prometheus.Register(errorsTotal)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// HTTPMetricsMiddleware collects HTTP request metrics.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		endpoint := normalizeEndpoint(c.Request.URL.Path)

		tenantID := c.GetString("tenant_id")
		if tenantID == "" {
			tenantID = "unknown"
		}

		activeConnections.Inc()
		defer activeConnections.Dec()

		c.Next()

		statusCode := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(method, endpoint, statusCode, tenantID).Inc()
		httpRequestDuration.WithLabelValues(method, endpoint, tenantID).Observe(duration)

		if c.Writer.Status() >= 400 {
			errorsTotal.WithLabelValues("http", endpoint).Inc()
		}
	}
}

// RecordDecision records one authorization decision. violation is empty
// for allowed verdicts.
func RecordDecision(verdict, violation string, duration time.Duration) {
	authzDecisionsTotal.WithLabelValues(verdict, violation).Inc()
	authzDecisionDuration.WithLabelValues(verdict).Observe(duration.Seconds())
}

// RecordCacheOperation records a cache operation result.
func RecordCacheOperation(operation, result string) {
	cacheOperationsTotal.WithLabelValues(operation, result).Inc()
	if result == "error" {
		errorsTotal.WithLabelValues("cache", operation).Inc()
	}
}

// RecordSyncRun records an endpoint catalog reconciliation run.
func RecordSyncRun(created, updated int, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
		errorsTotal.WithLabelValues("sync", "catalog").Inc()
	}
	syncRunsTotal.WithLabelValues(status).Inc()
	syncDuration.Observe(duration.Seconds())
	syncEntriesWritten.WithLabelValues("created").Add(float64(created))
	syncEntriesWritten.WithLabelValues("updated").Add(float64(updated))
}

// RecordError records a component error.
func RecordError(errType, component string) {
	errorsTotal.WithLabelValues(errType, component).Inc()
}

// normalizeEndpoint collapses ID path segments so metrics cardinality
// stays bounded.
func normalizeEndpoint(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if i > 0 && (isNumeric(part) || isUUID(part)) {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i, r := range s {
		switch i {
		case 8, 13, 18, 23:
			if r != '-' {
				return false
			}
		default:
			if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F') {
				return false
			}
		}
	}
	return true
}
