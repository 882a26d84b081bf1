package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the provisioning service.
type Metrics struct {
	// HTTP API metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Workflow metrics
	WorkflowRuns     *prometheus.CounterVec
	WorkflowDuration *prometheus.HistogramVec
	StepDuration     *prometheus.HistogramVec

	// Remote call metrics
	RemoteCalls  *prometheus.CounterVec
	RemoteErrors *prometheus.CounterVec

	// Token resolver metrics
	TokenExtractions *prometheus.CounterVec

	// Credential cache metrics
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions *prometheus.CounterVec

	startTime time.Time
}

// New creates a metrics collector registered on the given registerer.
// Pass prometheus.NewRegistry() in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateprov_http_requests_total",
				Help: "Total number of HTTP API requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateprov_http_request_duration_seconds",
				Help:    "HTTP API request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"method", "path"},
		),

		WorkflowRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateprov_workflow_runs_total",
				Help: "Total number of creation workflow runs by outcome",
			},
			[]string{"instance", "outcome"},
		),
		WorkflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateprov_workflow_duration_seconds",
				Help:    "Creation workflow duration in seconds",
				Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"instance"},
		),
		StepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateprov_workflow_step_duration_seconds",
				Help:    "Workflow step duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"step"},
		),

		RemoteCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateprov_remote_calls_total",
				Help: "Total number of calls against remote admin panels",
			},
			[]string{"instance", "kind", "status"},
		),
		RemoteErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateprov_remote_errors_total",
				Help: "Total number of remote call errors",
			},
			[]string{"instance", "kind"},
		),

		TokenExtractions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateprov_token_extractions_total",
				Help: "Token extraction attempts by strategy and result",
			},
			[]string{"strategy", "result"},
		),

		CacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateprov_credcache_hits_total",
				Help: "Credential cache hits",
			},
		),
		CacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateprov_credcache_misses_total",
				Help: "Credential cache misses (including TTL expiry)",
			},
		),
		CacheEvictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateprov_credcache_evictions_total",
				Help: "Credential cache evictions by reason",
			},
			[]string{"reason"},
		),
	}
}

// NewDefault creates a metrics collector on the default registry.
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

// RecordHTTPRequest records an HTTP API request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordWorkflow records a completed workflow run.
func (m *Metrics) RecordWorkflow(instance, outcome string, duration time.Duration) {
	m.WorkflowRuns.WithLabelValues(instance, outcome).Inc()
	m.WorkflowDuration.WithLabelValues(instance).Observe(duration.Seconds())
}

// RecordStep records a workflow step duration.
func (m *Metrics) RecordStep(step string, duration time.Duration) {
	m.StepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordRemoteCall records a remote panel round trip.
func (m *Metrics) RecordRemoteCall(instance, kind, status string) {
	m.RemoteCalls.WithLabelValues(instance, kind, status).Inc()
}

// RecordRemoteError records a remote call failure.
func (m *Metrics) RecordRemoteError(instance, kind string) {
	m.RemoteErrors.WithLabelValues(instance, kind).Inc()
}

// RecordTokenExtraction records one strategy attempt.
func (m *Metrics) RecordTokenExtraction(strategy, result string) {
	m.TokenExtractions.WithLabelValues(strategy, result).Inc()
}

// RecordCacheHit records a credential cache hit.
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordCacheMiss records a credential cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}

// RecordCacheEviction records a credential cache eviction.
func (m *Metrics) RecordCacheEviction(reason string) {
	m.CacheEvictions.WithLabelValues(reason).Inc()
}

// Uptime returns time since metrics creation.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}
