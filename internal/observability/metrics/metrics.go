package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "draftmill_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "draftmill_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "draftmill_logins_total",
		Help: "Count of login attempts by outcome",
	}, []string{"result"})

	twoFactorChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "draftmill_two_factor_checks_total",
		Help: "Count of TOTP verification attempts by outcome",
	}, []string{"result"})

	tokenVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "draftmill_token_verifications_total",
		Help: "Count of access token verifications by outcome",
	}, []string{"result"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "draftmill_active_sessions",
		Help: "Number of currently active sessions (logical state)",
	})

	llmRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "draftmill_llm_request_duration_seconds",
		Help:    "Duration of LLM generation calls",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60},
	}, []string{"result"})

	pipelineAdvances = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "draftmill_pipeline_advances_total",
		Help: "Count of article pipeline stage transitions",
	}, []string{"stage", "result"})

	cleanupOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "draftmill_cleanup_operations_total",
		Help: "Count of cleanup operations by source and result",
	}, []string{"source", "result"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveLogin increments the login counter with an outcome label.
func ObserveLogin(result string) {
	loginsTotal.WithLabelValues(result).Inc()
}

// ObserveTwoFactor increments the TOTP verification counter.
func ObserveTwoFactor(result string) {
	twoFactorChecks.WithLabelValues(result).Inc()
}

// ObserveTokenVerification increments the token verification counter.
func ObserveTokenVerification(result string) {
	tokenVerifications.WithLabelValues(result).Inc()
}

// IncActiveSessions increments the active session gauge.
func IncActiveSessions() {
	activeSessions.Inc()
}

// DecActiveSessions decrements the active session gauge.
func DecActiveSessions() {
	activeSessions.Dec()
}

// SetActiveSessions sets the active session gauge to a specific count,
// used when reconciling against the database at startup.
func SetActiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	activeSessions.Set(float64(count))
}

// ObserveLLMRequest records the duration of an LLM call with a result label.
func ObserveLLMRequest(result string, duration time.Duration) {
	llmRequestDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// ObservePipelineAdvance records an article stage transition attempt.
func ObservePipelineAdvance(stage, result string) {
	pipelineAdvances.WithLabelValues(stage, result).Inc()
}

// ObserveCleanup increments the cleanup counter for the given source and result.
func ObserveCleanup(source, result string) {
	cleanupOperations.WithLabelValues(source, result).Inc()
}
