// Package metrics holds the Prometheus collectors of the service.
// This is part of the platform layer and contains no business logic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics. A nil *Registry is valid and records nothing.
type Registry struct {
	gatherer prometheus.Gatherer

	// HTTP Metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Lifecycle Metrics
	StatusTransitions   *prometheus.CounterVec
	InvariantViolations *prometheus.CounterVec
	LockConflicts       prometheus.Counter
	MutationDuration    *prometheus.HistogramVec

	// Notification Metrics
	NotificationsEnqueued      *prometheus.CounterVec
	NotificationEnqueueFailure *prometheus.CounterVec
	OutboxDispatched           *prometheus.CounterVec

	// Cache Metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses prometheus.Counter
}

// New registers every collector on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		gatherer: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sfr_http_requests_total",
				Help: "Total HTTP requests processed by route, method, and status code",
			},
			[]string{"route", "method", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sfr_http_request_duration_seconds",
				Help:    "HTTP request latency distribution in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"route", "method"},
		),

		StatusTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sfr_status_transitions_total",
				Help: "Derived status changes by previous and new status",
			},
			[]string{"from", "to"},
		),
		InvariantViolations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sfr_invariant_violations_total",
				Help: "Data-consistency violations detected after a mutation",
			},
			[]string{"invariant"},
		),
		LockConflicts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sfr_lock_conflicts_total",
				Help: "Mutations rejected because the request row lock could not be acquired",
			},
		),
		MutationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sfr_mutation_duration_seconds",
				Help:    "Time spent inside a lifecycle transaction",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"operation"},
		),

		NotificationsEnqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sfr_notifications_enqueued_total",
				Help: "Notification events written to the outbox by kind",
			},
			[]string{"kind"},
		),
		NotificationEnqueueFailure: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sfr_notification_enqueue_failures_total",
				Help: "Notification events that could not be written to the outbox",
			},
			[]string{"kind"},
		),
		OutboxDispatched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sfr_outbox_dispatched_total",
				Help: "Outbox rows processed by result",
			},
			[]string{"result"},
		),

		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sfr_status_cache_hits_total",
				Help: "Status cache hits by layer",
			},
			[]string{"layer"},
		),
		CacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sfr_status_cache_misses_total",
				Help: "Status cache misses that fell through to derivation",
			},
		),
	}
}

// ObserveTransition records a status change. Unchanged statuses are ignored.
func (r *Registry) ObserveTransition(from, to string) {
	if r == nil || from == to {
		return
	}
	r.StatusTransitions.WithLabelValues(from, to).Inc()
}

// ObserveInvariantViolation counts a detected consistency bug.
func (r *Registry) ObserveInvariantViolation(invariant string) {
	if r == nil {
		return
	}
	r.InvariantViolations.WithLabelValues(invariant).Inc()
}

// ObserveLockConflict counts a rejected lock acquisition.
func (r *Registry) ObserveLockConflict() {
	if r == nil {
		return
	}
	r.LockConflicts.Inc()
}

// ObserveMutation records the duration of a lifecycle transaction.
func (r *Registry) ObserveMutation(operation string, started time.Time) {
	if r == nil {
		return
	}
	r.MutationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// ObserveEnqueue counts an outbox write attempt.
func (r *Registry) ObserveEnqueue(kind string, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.NotificationEnqueueFailure.WithLabelValues(kind).Inc()
		return
	}
	r.NotificationsEnqueued.WithLabelValues(kind).Inc()
}

// ObserveDispatch counts a processed outbox row.
func (r *Registry) ObserveDispatch(result string) {
	if r == nil {
		return
	}
	r.OutboxDispatched.WithLabelValues(result).Inc()
}

// ObserveCacheHit counts a status cache hit on layer.
func (r *Registry) ObserveCacheHit(layer string) {
	if r == nil {
		return
	}
	r.CacheHits.WithLabelValues(layer).Inc()
}

// ObserveCacheMiss counts a status cache miss.
func (r *Registry) ObserveCacheMiss() {
	if r == nil {
		return
	}
	r.CacheMisses.Inc()
}

// Middleware records HTTP metrics for each request.
func (r *Registry) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		r.HTTPRequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		r.HTTPRequestDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
