package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Authorization metrics
	AuthzDecisionsTotal   *prometheus.CounterVec
	AuthzEvalDuration     *prometheus.HistogramVec
	AuthzLookupErrorsTotal *prometheus.CounterVec

	// Enforcer role cache metrics
	RoleCacheHitsTotal   prometheus.Counter
	RoleCacheMissesTotal prometheus.Counter

	// Membership view metrics
	ViewRefreshTotal    *prometheus.CounterVec
	ViewRefreshDuration prometheus.Histogram
	ViewEntriesTotal    prometheus.Gauge

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantguard_authz_decisions_total",
				Help: "Total number of authorization decisions",
			},
			[]string{"resource", "operation", "outcome"},
		),
		AuthzEvalDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tenantguard_authz_eval_duration_seconds",
				Help:    "Authorization evaluation duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
			},
			[]string{"resource", "operation"},
		),
		AuthzLookupErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantguard_authz_lookup_errors_total",
				Help: "Total number of failed membership lookups during authorization",
			},
			[]string{"resource"},
		),

		RoleCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tenantguard_role_cache_hits_total",
				Help: "Total number of role cache hits in the enforcer",
			},
		),
		RoleCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tenantguard_role_cache_misses_total",
				Help: "Total number of role cache misses in the enforcer",
			},
		),

		ViewRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantguard_view_refresh_total",
				Help: "Total number of membership view refreshes",
			},
			[]string{"status"},
		),
		ViewRefreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tenantguard_view_refresh_duration_seconds",
				Help:    "Membership view refresh duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		ViewEntriesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tenantguard_view_entries_total",
				Help: "Number of entries in the membership view after the last refresh",
			},
		),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantguard_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tenantguard_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tenantguard_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tenantguard_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.AuthzDecisionsTotal,
		m.AuthzEvalDuration,
		m.AuthzLookupErrorsTotal,
		m.RoleCacheHitsTotal,
		m.RoleCacheMissesTotal,
		m.ViewRefreshTotal,
		m.ViewRefreshDuration,
		m.ViewEntriesTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// RecordDecision records one authorization decision outcome
func (m *Metrics) RecordDecision(resource string, operation string, allowed bool, duration time.Duration) {
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	m.AuthzDecisionsTotal.WithLabelValues(resource, operation, outcome).Inc()
	m.AuthzEvalDuration.WithLabelValues(resource, operation).Observe(duration.Seconds())
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// UpdateDBStats copies connection pool stats into the database gauges.
// Call it on a ticker; database/sql exposes no push hook.
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}
