package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admindash_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "admindash_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admindash_login_attempts_total",
		Help: "Login attempts by result",
	}, []string{"result"})

	tokenValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admindash_token_validations_total",
		Help: "Session token checks by result",
	}, []string{"result"})

	directoryOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admindash_directory_operations_total",
		Help: "User directory operations by operation and result",
	}, []string{"operation", "result"})

	storeOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admindash_store_operations_total",
		Help: "User store load/save calls by backend and result",
	}, []string{"backend", "operation", "result"})

	storeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "admindash_store_operation_duration_seconds",
		Help:    "Duration of user store load/save calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "operation"})

	usersTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "admindash_users",
		Help: "Number of user records in the last loaded or saved snapshot",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveLogin counts a login attempt; result is "success", "failure", "rate_limited" or "error"
func ObserveLogin(result string) {
	loginAttempts.WithLabelValues(result).Inc()
}

// ObserveTokenValidation counts a session check; result is "ok", "missing", "invalid" or "expired"
func ObserveTokenValidation(result string) {
	tokenValidations.WithLabelValues(result).Inc()
}

// ObserveDirectoryOperation counts a directory call with its outcome
func ObserveDirectoryOperation(operation, result string) {
	directoryOperations.WithLabelValues(operation, result).Inc()
}

// ObserveStoreOperation records a store call. Rejected calls carry no duration.
func ObserveStoreOperation(backend, operation, result string, duration time.Duration) {
	storeOperations.WithLabelValues(backend, operation, result).Inc()
	if duration > 0 {
		storeDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	}
}

// SetUsers sets the user count gauge
func SetUsers(count int) {
	if count < 0 {
		count = 0
	}
	usersTotal.Set(float64(count))
}
