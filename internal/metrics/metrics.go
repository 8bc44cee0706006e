package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exposes alert engine counters. A nil *Recorder is a no-op.
type Recorder struct {
	registry        *prometheus.Registry
	reconciliations *prometheus.CounterVec
	failures        prometheus.Counter
	duration        prometheus.Histogram
	recomputeRuns   *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New registers the engine collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricewatch",
			Name:      "reconciliations_total",
			Help:      "Alert reconciliations by resulting action.",
		}, []string{"action"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pricewatch",
			Name:      "reconciliation_failures_total",
			Help:      "Reconciliations that failed on a store error.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pricewatch",
			Name:      "reconciliation_duration_seconds",
			Help:      "Time spent reconciling one observation.",
			Buckets:   prometheus.DefBuckets,
		}),
		recomputeRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricewatch",
			Name:      "recompute_runs_total",
			Help:      "Bulk recompute runs by trigger.",
		}, []string{"trigger"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricewatch",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pricewatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
	}
	reg.MustRegister(
		r.reconciliations,
		r.failures,
		r.duration,
		r.recomputeRuns,
		r.httpRequests,
		r.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveReconcile counts one reconciliation and its latency.
func (r *Recorder) ObserveReconcile(action string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.reconciliations.WithLabelValues(action).Inc()
	r.duration.Observe(elapsed.Seconds())
}

// ReconcileFailed counts a failed reconciliation.
func (r *Recorder) ReconcileFailed() {
	if r == nil {
		return
	}
	r.failures.Inc()
}

// RecomputeStarted counts a bulk recompute run.
func (r *Recorder) RecomputeStarted(trigger string) {
	if r == nil {
		return
	}
	r.recomputeRuns.WithLabelValues(trigger).Inc()
}

// ObserveHTTP counts one served request.
func (r *Recorder) ObserveHTTP(path, method string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(path, method).Observe(elapsed.Seconds())
}

// Registry exposes the underlying registry for scraping in tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
