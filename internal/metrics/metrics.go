package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus collectors for the ekklesia API.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Auth metrics. Operation is register, login, logout or verify.
	AuthSuccessesTotal *prometheus.CounterVec
	AuthFailuresTotal  *prometheus.CounterVec
	TokensIssuedTotal  *prometheus.CounterVec

	RateLimitRejectionsTotal prometheus.Counter

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ekklesia_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ekklesia_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		AuthSuccessesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ekklesia_auth_successes_total",
			Help: "Total number of successful auth operations.",
		}, []string{"operation"}),

		AuthFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ekklesia_auth_failures_total",
			Help: "Total number of failed auth operations by reason.",
		}, []string{"operation", "reason"}),

		TokensIssuedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ekklesia_tokens_issued_total",
			Help: "Total number of session tokens issued by role.",
		}, []string{"role"}),

		RateLimitRejectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ekklesia_ratelimit_rejections_total",
			Help: "Total number of credential attempts rejected by the rate limiter.",
		}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ekklesia_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthSuccessesTotal,
		m.AuthFailuresTotal,
		m.TokensIssuedTotal,
		m.RateLimitRejectionsTotal,
		m.ServerStartTime,
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterDBPoolCollector registers a custom DB pool stats collector.
func (m *Metrics) RegisterDBPoolCollector(statFunc DBPoolStatFunc) {
	m.registry.MustRegister(NewDBPoolCollector(statFunc))
}

// The recording helpers below are no-ops on a nil *Metrics so callers can
// run without a registry (tests, CLI).

// IncAuthSuccess increments the success counter for operation.
func (m *Metrics) IncAuthSuccess(operation string) {
	if m == nil {
		return
	}
	m.AuthSuccessesTotal.WithLabelValues(operation).Inc()
}

// IncAuthFailure increments the failure counter for operation and reason.
func (m *Metrics) IncAuthFailure(operation, reason string) {
	if m == nil {
		return
	}
	m.AuthFailuresTotal.WithLabelValues(operation, reason).Inc()
}

// IncTokenIssued counts a minted session token.
func (m *Metrics) IncTokenIssued(role string) {
	if m == nil {
		return
	}
	m.TokensIssuedTotal.WithLabelValues(role).Inc()
}

// IncRateLimitRejection counts a request rejected by the login limiter.
func (m *Metrics) IncRateLimitRejection() {
	if m == nil {
		return
	}
	m.RateLimitRejectionsTotal.Inc()
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, pattern string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, pattern, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pattern).Observe(d.Seconds())
}
