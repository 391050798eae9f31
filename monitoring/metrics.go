// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NickB03/vana/cache"
)

const namespace = "vana"

// Metrics holds the VANA collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	agentInvocations *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
}

// NewMetrics creates and registers the VANA collectors together with the Go runtime and
// process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		agentInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_invocations_total",
			Help:      "Agent turns by responding agent and outcome.",
		}, []string{"agent", "status"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_total",
			Help:      "Switches to a fallback implementation by operation.",
		}, []string{"operation"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.agentInvocations,
		m.fallbacks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordAgent counts one agent turn.
func (m *Metrics) RecordAgent(agent, status string) {
	if agent == "" {
		agent = "unknown"
	}
	m.agentInvocations.WithLabelValues(agent, status).Inc()
}

// OnFallback returns a callback for fallback.WithOnFallback that counts fallback switches.
func (m *Metrics) OnFallback() func(operation string, index int) {
	return func(operation string, _ int) {
		m.fallbacks.WithLabelValues(operation).Inc()
	}
}

// WatchCaches exports the counters of every cache in r.
func (m *Metrics) WatchCaches(r *cache.Registry) error {
	return m.registry.Register(newCacheCollector(r))
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Middleware records request counts and latency labelled with the chi route pattern, so
// path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := routePattern(r)
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// cacheCollector reads cache statistics at scrape time.
type cacheCollector struct {
	registry *cache.Registry

	hits      *prometheus.Desc
	misses    *prometheus.Desc
	evictions *prometheus.Desc
	size      *prometheus.Desc
}

func newCacheCollector(r *cache.Registry) *cacheCollector {
	labels := []string{"cache"}
	return &cacheCollector{
		registry:  r,
		hits:      prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", "hits_total"), "Cache hits.", labels, nil),
		misses:    prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", "misses_total"), "Cache misses.", labels, nil),
		evictions: prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", "evictions_total"), "Entries evicted by capacity.", labels, nil),
		size:      prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", "entries"), "Entries currently cached.", labels, nil),
	}
}

func (c *cacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.evictions
	ch <- c.size
}

func (c *cacheCollector) Collect(ch chan<- prometheus.Metric) {
	for name, st := range c.registry.Stats() {
		ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(st.Hits), name)
		ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(st.Misses), name)
		ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(st.Evictions), name)
		ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(st.Size), name)
	}
}
