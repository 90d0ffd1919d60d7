package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enforcement_evaluations_total",
			Help: "Total number of enforcement evaluations (count)",
		},
		[]string{"outcome"},
	)

	EvaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enforcement_evaluation_duration_ms",
			Help:    "Enforcement evaluation duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"outcome"},
	)

	GateDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enforcement_gate_denials_total",
			Help: "Total number of denied gate checks by reason (count)",
		},
		[]string{"gate", "reason"},
	)

	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_resolutions_total",
			Help: "Total number of rule pack resolutions by matched scope (count)",
		},
		[]string{"scope"},
	)

	ResolverCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_cache_total",
			Help: "Resolved-pack cache lookups by result (count)",
		},
		[]string{"result"},
	)

	ActivePacks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rulepack_active_packs",
			Help: "Number of currently active rule packs (count)",
		},
	)

	PackMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rulepack_mutations_total",
			Help: "Rule pack mutations by action (count)",
		},
		[]string{"action"},
	)

	PackEventPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rulepack_event_publish_total",
			Help: "Pack change events published to the broker (count)",
		},
		[]string{"status"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total retry attempts by component (count)",
		},
		[]string{"component", "target"},
	)

	RateLimitRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ratelimit_rejections_total",
			Help: "Requests rejected by the admin rate limiter (count)",
		},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through circuit breakers by result (count)",
		},
		[]string{"name", "result"},
	)
)

func RegisterEngineMetrics() {
	prometheus.MustRegister(
		EvaluationsTotal,
		EvaluationDuration,
		GateDenialsTotal,
		ResolutionsTotal,
		ResolverCacheTotal,
		ActivePacks,
		PackMutationsTotal,
		PackEventPublishTotal,
		RetryAttemptsTotal,
		RateLimitRejectionsTotal,
	)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(
		CircuitBreakerState,
		CircuitBreakerRequestsTotal,
	)
}

func ObserveEvaluationDuration(d time.Duration, outcome string) {
	EvaluationDuration.WithLabelValues(outcome).Observe(float64(d.Milliseconds()))
}

func SetActivePacks(n int) {
	ActivePacks.Set(float64(n))
}

func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func RecordCircuitBreakerRequest(name string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	CircuitBreakerRequestsTotal.WithLabelValues(name, result).Inc()
}

func EvaluationOutcome(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "blocked"
}

func ScopeLabel(scopeType string) string {
	if scopeType == "" {
		return "none"
	}
	return strings.ToLower(scopeType)
}
