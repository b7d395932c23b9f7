package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result constants for metric labels.
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultNoop     = "noop"
	ResultRejected = "rejected"
)

// Nonce operation labels.
const (
	OpIssue   = "issue"
	OpConsume = "consume"
	OpPurge   = "purge"
)

// Metrics holds the Prometheus collectors exported by ssogate.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	LoginAttemptsTotal   *prometheus.CounterVec
	NonceOperationsTotal *prometheus.CounterVec
	JobRunsTotal         *prometheus.CounterVec
	JobDuration          *prometheus.HistogramVec
	ReaperPurgedTotal    prometheus.Counter
	HTTPRequestsTotal    *prometheus.CounterVec
}

// New creates and registers all collectors on registry. A nil registry gets a fresh one
// carrying the Go runtime and process collectors.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		registry: registry,
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssogate_login_attempts_total",
				Help: "Login flow outcomes by branch",
			},
			[]string{"outcome"},
		),
		NonceOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssogate_nonce_operations_total",
				Help: "Nonce issue/consume/purge operations",
			},
			[]string{"op", "result"},
		),
		JobRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssogate_scheduler_job_runs_total",
				Help: "Background refresh job runs",
			},
			[]string{"job", "result"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ssogate_scheduler_job_duration_seconds",
				Help:    "Background refresh job duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"job"},
		),
		ReaperPurgedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ssogate_reaper_purged_total",
				Help: "Expired nonces removed by the reaper",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssogate_http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
	}

	registry.MustRegister(
		m.LoginAttemptsTotal,
		m.NonceOperationsTotal,
		m.JobRunsTotal,
		m.JobDuration,
		m.ReaperPurgedTotal,
		m.HTTPRequestsTotal,
	)
	return m
}

// Registry returns the registry the collectors were registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// LoginAttempt counts a login flow outcome.
func (m *Metrics) LoginAttempt(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
}

// NonceOp counts a nonce store operation.
func (m *Metrics) NonceOp(op, result string) {
	if m == nil {
		return
	}
	m.NonceOperationsTotal.WithLabelValues(op, result).Inc()
}

// JobRun records a finished background job run.
func (m *Metrics) JobRun(job, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.JobRunsTotal.WithLabelValues(job, result).Inc()
	m.JobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// ReaperPurged adds n purged nonces.
func (m *Metrics) ReaperPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.ReaperPurgedTotal.Add(float64(n))
}

// HTTPRequest counts a served request.
func (m *Metrics) HTTPRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
