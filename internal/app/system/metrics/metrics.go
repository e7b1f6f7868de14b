// Package metrics owns the Prometheus registry exposed on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service reports.
type Metrics struct {
	reg *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec

	authEvents   *prometheus.CounterVec
	taskChanges  *prometheus.CounterVec
	cascadeSwept prometheus.Counter
}

// New builds a Metrics with its own registry, including Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskhub",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "taskhub",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskhub",
			Name:      "auth_events_total",
			Help:      "Authentication events by type and outcome.",
		}, []string{"event", "outcome"}),
		taskChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskhub",
			Name:      "task_changes_total",
			Help:      "Task mutations by operation.",
		}, []string{"op"}),
		cascadeSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taskhub",
			Name:      "cascade_swept_tasks_total",
			Help:      "Tasks soft-deleted by the cascade sweeper.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.latency, m.authEvents, m.taskChanges, m.cascadeSwept,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Middleware records count and latency per chi route pattern. Unmatched
// paths are reported as "unmatched" to keep label cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.latency.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// AuthEvent counts an authentication event such as "login" with outcome
// "success" or "failure".
func (m *Metrics) AuthEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.authEvents.WithLabelValues(event, outcome).Inc()
}

// TaskChanged counts a task mutation.
func (m *Metrics) TaskChanged(op string) {
	if m == nil {
		return
	}
	m.taskChanges.WithLabelValues(op).Inc()
}

// CascadeSwept adds n tasks removed by the sweeper.
func (m *Metrics) CascadeSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cascadeSwept.Add(float64(n))
}
