// Package metrics exposes Prometheus instruments for the snapshot engine.
//
// A nil *Recorder is valid and records nothing, so callers never need to
// guard instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "countries"

// Recorder holds every instrument registered by New.
type Recorder struct {
	gatherer prometheus.Gatherer

	refreshRuns     *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	refreshRecords  *prometheus.CounterVec
	lastRefresh     prometheus.Gauge
	upstreamCalls   *prometheus.CounterVec
	rateCache       *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New registers the instruments on a fresh registry together with the Go
// runtime and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newRecorder(reg, reg)
}

func newRecorder(registerer prometheus.Registerer, gatherer prometheus.Gatherer) *Recorder {
	r := &Recorder{
		gatherer: gatherer,
		refreshRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_runs_total",
			Help:      "Reconciliation cycles by outcome.",
		}, []string{"outcome"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Reconciliation cycle latency including upstream fetches.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		}),
		refreshRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_records_total",
			Help:      "Records touched by reconciliation cycles.",
		}, []string{"mode", "result"}),
		lastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_refresh_success_timestamp_seconds",
			Help:      "Unix time of the last committed reconciliation cycle.",
		}),
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Calls to external data providers by outcome.",
		}, []string{"provider", "outcome"}),
		rateCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_cache_lookups_total",
			Help:      "Exchange-rate table cache lookups.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registerer.MustRegister(
		r.refreshRuns,
		r.refreshDuration,
		r.refreshRecords,
		r.lastRefresh,
		r.upstreamCalls,
		r.rateCache,
		r.httpRequests,
		r.httpDuration,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// ObserveRefresh records one reconciliation cycle.
func (r *Recorder) ObserveRefresh(outcome, mode string, created, updated, skipped, failed int, d time.Duration) {
	if r == nil {
		return
	}
	r.refreshRuns.WithLabelValues(outcome).Inc()
	r.refreshDuration.Observe(d.Seconds())
	if outcome != "success" {
		return
	}

	r.lastRefresh.SetToCurrentTime()
	r.refreshRecords.WithLabelValues(mode, "created").Add(float64(created))
	r.refreshRecords.WithLabelValues(mode, "updated").Add(float64(updated))
	r.refreshRecords.WithLabelValues(mode, "skipped").Add(float64(skipped))
	r.refreshRecords.WithLabelValues(mode, "failed").Add(float64(failed))
}

// ObserveUpstream records one provider call.
func (r *Recorder) ObserveUpstream(provider, outcome string) {
	if r == nil {
		return
	}
	r.upstreamCalls.WithLabelValues(provider, outcome).Inc()
}

// ObserveRateCache records a hit or miss on the rate table cache.
func (r *Recorder) ObserveRateCache(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.rateCache.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served request. route is the chi route pattern.
func (r *Recorder) ObserveHTTP(method, route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
