// Package server: metrics.go registers the Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// labelHandler is the "handler" label name used to partition metrics by the
// route pattern rather than the raw URL path.
const labelHandler = "handler"

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// searchRequestsTotal counts /api/search requests by outcome:
	// "ok", "degraded", or "error".
	searchRequestsTotal *prometheus.CounterVec

	// searchDurationSeconds records search latency including the embed call.
	searchDurationSeconds *prometheus.HistogramVec

	// generations counts generation-backed requests by operation and outcome.
	generations *prometheus.CounterVec

	// recordsAddedTotal counts records added through POST /api/records.
	recordsAddedTotal prometheus.Counter

	// recordsIndexedTotal counts records written by POST /api/index.
	recordsIndexedTotal prometheus.Counter

	// storedRecords is the record count seen by the last /api/stats call.
	storedRecords prometheus.Gauge

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, route pattern, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		searchRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acrecall",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total number of /api/search requests, partitioned by outcome.",
		}, []string{"outcome"}),

		searchDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "acrecall",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Latency of /api/search requests including query embedding.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"outcome"}),

		generations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acrecall",
			Subsystem: "generation",
			Name:      "requests_total",
			Help:      "Generation-backed requests, partitioned by operation and outcome.",
		}, []string{"operation", "outcome"}),

		recordsAddedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "acrecall",
			Subsystem: "records",
			Name:      "added_total",
			Help:      "Records added through the records API.",
		}),

		recordsIndexedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "acrecall",
			Subsystem: "records",
			Name:      "indexed_total",
			Help:      "Records written by directory indexing.",
		}),

		storedRecords: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "acrecall",
			Subsystem: "records",
			Name:      "stored",
			Help:      "Record count observed by the last stats request.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acrecall",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "acrecall",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// observeSearch records one search outcome.
func (m *serverMetrics) observeSearch(outcome string, d time.Duration) {
	m.searchRequestsTotal.WithLabelValues(outcome).Inc()
	m.searchDurationSeconds.WithLabelValues(outcome).Observe(d.Seconds())
}

// instrument records request counts and latency per route pattern.
func (s *Server) instrument(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, pattern := mux.Handler(r)
		if pattern == "" {
			pattern = "unmatched"
		}
		rw, ok := w.(*responseWriter)
		if !ok {
			rw = &responseWriter{ResponseWriter: w, status: http.StatusOK}
		}

		start := time.Now()
		mux.ServeHTTP(rw, r)

		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}
