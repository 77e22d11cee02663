// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the storegate backend.
package observability

import "github.com/prometheus/client_golang/prometheus"

// APIBuckets defines histogram buckets suited for I/O-bound API
// latencies, ranging from 5ms to 10s.
var APIBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storegate_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storegate_request_duration_seconds",
			Help:    "Request duration",
			Buckets: APIBuckets,
		},
		[]string{"method"},
	)

	// TenantResolutionsTotal counts tenant resolution attempts by
	// candidate source and outcome (hit, miss, optional, required).
	TenantResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storegate_tenant_resolutions_total",
			Help: "Tenant resolutions",
		},
		[]string{"source", "outcome"},
	)

	// AuthOperationsTotal counts auth engine operations by name and outcome.
	AuthOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storegate_auth_operations_total",
			Help: "Auth operations",
		},
		[]string{"operation", "outcome"},
	)

	// TokenRotationsTotal counts refresh token rotations by outcome
	// (rotated, replayed). Replays indicate a reused refresh token.
	TokenRotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storegate_token_rotations_total",
			Help: "Refresh token rotations",
		},
		[]string{"outcome"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storegate_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"scope"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		TenantResolutionsTotal,
		AuthOperationsTotal,
		TokenRotationsTotal,
		RateLimitRejectedTotal,
	)
}
