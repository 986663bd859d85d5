package observability

import (
	"time"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	guardDecisions  *prometheus.CounterVec
	roleResolutions *prometheus.CounterVec
	quotesIssued    prometheus.Counter
	sessionsStarted *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bfa_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		guardDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_route_guard_decisions_total",
				Help: "Route guard decisions by outcome.",
			},
			[]string{"outcome"},
		),
		roleResolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_role_resolutions_total",
				Help: "Role resolutions by source (backend, cache, fallback).",
			},
			[]string{"source"},
		),
		quotesIssued: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bfa_quotes_issued_total",
				Help: "Total premium quotes issued.",
			},
		),
		sessionsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_sessions_total",
				Help: "Session lifecycle events (sign_in, sign_up, refresh, sign_out).",
			},
			[]string{"event"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrGuardDecision counts one route guard decision.
func (m *Metrics) IncrGuardDecision(outcome domain.Outcome) {
	m.guardDecisions.WithLabelValues(string(outcome)).Inc()
}

// IncrRoleResolution counts one role resolution by where the answer came from.
func (m *Metrics) IncrRoleResolution(source string) {
	m.roleResolutions.WithLabelValues(source).Inc()
}

// IncrQuote counts one issued quote.
func (m *Metrics) IncrQuote() {
	m.quotesIssued.Inc()
}

// IncrSessionEvent counts a session lifecycle event.
func (m *Metrics) IncrSessionEvent(event string) {
	m.sessionsStarted.WithLabelValues(event).Inc()
}

// GetAccessSnapshot returns a snapshot of access-control metrics suitable for
// the GET /v1/admin/metrics/access endpoint.
func (m *Metrics) GetAccessSnapshot() *domain.AccessMetrics {
	allowed := getCounterValue(m.guardDecisions, string(domain.OutcomeAllow))
	denied := getCounterValue(m.guardDecisions, string(domain.OutcomeDenied))
	redirected := getCounterValue(m.guardDecisions, string(domain.OutcomeRedirectSignIn))
	loading := getCounterValue(m.guardDecisions, string(domain.OutcomeLoading))

	fromBackend := getCounterValue(m.roleResolutions, "backend")
	fromCache := getCounterValue(m.roleResolutions, "cache")
	fallback := getCounterValue(m.roleResolutions, "fallback")
	total := fromBackend + fromCache + fallback

	fallbackRate := float64(0)
	if total > 0 {
		fallbackRate = fallback / total
	}

	hits := getCounterValue(m.cacheHits, "role")
	misses := getCounterValue(m.cacheMisses, "role")
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.AccessMetrics{
		GuardAllowed:     int64(allowed),
		GuardDenied:      int64(denied),
		GuardRedirected:  int64(redirected),
		GuardLoading:     int64(loading),
		RoleResolutions:  int64(total),
		RoleFallbackRate: fallbackRate,
		RoleCacheHitRate: hitRate,
		QuotesIssued:     int64(counterValue(m.quotesIssued)),
		Period:           "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return counterValue(cv.WithLabelValues(label))
}

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
