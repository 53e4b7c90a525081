package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edstack/academia-api/internal/models"
)

// Allocation outcomes recorded against the allocator counters.
const (
	AllocationOutcomeCreated  = "created"
	AllocationOutcomeConflict = "conflict"
	AllocationOutcomeRejected = "rejected"
	AllocationOutcomeError    = "error"
)

// metricTotals keeps cheap atomic aggregates alongside the Prometheus
// collectors so Snapshot never has to scrape the registry.
type metricTotals struct {
	cacheHits       uint64
	cacheMisses     uint64
	requests        uint64
	requestDuration uint64
	allocations     uint64
	allocConflicts  uint64
	allocRetries    uint64
}

// MetricsService owns the Prometheus registry for the process and exposes
// snapshot aggregates for the health endpoint.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	allocTotal      *prometheus.CounterVec
	allocRetries    prometheus.Counter

	totals metricTotals
}

// NewMetricsService builds a dedicated registry with the HTTP, cache and
// allocator collectors registered.
func NewMetricsService() *MetricsService {
	m := &MetricsService{registry: prometheus.NewRegistry()}

	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	m.requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})
	m.cacheLatency = cacheLatency

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})
	m.cacheWrite = cacheWrite

	m.cacheHitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	m.cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	m.cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	m.allocTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "slot_allocations_total",
		Help: "Total slot allocation attempts by outcome",
	}, []string{"outcome"})

	m.allocRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slot_allocation_retries_total",
		Help: "Total allocation retries after transient storage conflicts",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	m.registry.MustRegister(
		m.requestDuration,
		m.requestTotal,
		cacheLatency,
		cacheWrite,
		m.cacheHitRatio,
		m.cacheHits,
		m.cacheMisses,
		m.allocTotal,
		m.allocRetries,
		goroutines,
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus scrape handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one request against the HTTP collectors.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, code).Inc()
	atomic.AddUint64(&m.totals.requests, 1)
	atomic.AddUint64(&m.totals.requestDuration, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a cache lookup and refreshes the hit ratio gauge.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.totals.cacheHits, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.totals.cacheMisses, 1)
	}
	if ratio, ok := m.hitRatio(); ok {
		m.cacheHitRatio.Set(ratio)
	}
}

// ObserveCacheWrite tracks the duration of one cache set.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordAllocation counts one allocation attempt by outcome.
func (m *MetricsService) RecordAllocation(outcome string) {
	if m == nil {
		return
	}
	m.allocTotal.WithLabelValues(outcome).Inc()
	atomic.AddUint64(&m.totals.allocations, 1)
	if outcome == AllocationOutcomeConflict {
		atomic.AddUint64(&m.totals.allocConflicts, 1)
	}
}

// RecordAllocationRetry counts one retry after a transient storage conflict.
func (m *MetricsService) RecordAllocationRetry() {
	if m == nil {
		return
	}
	m.allocRetries.Inc()
	atomic.AddUint64(&m.totals.allocRetries, 1)
}

func (m *MetricsService) hitRatio() (float64, bool) {
	hits := atomic.LoadUint64(&m.totals.cacheHits)
	total := hits + atomic.LoadUint64(&m.totals.cacheMisses)
	if total == 0 {
		return 0, false
	}
	return float64(hits) / float64(total), true
}

// Snapshot returns aggregated metrics suitable for dashboard endpoints.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests := atomic.LoadUint64(&m.totals.requests)
	var avgRequestMs float64
	if requests > 0 {
		totalNs := atomic.LoadUint64(&m.totals.requestDuration)
		avgRequestMs = float64(totalNs) / float64(requests) / float64(time.Millisecond)
	}
	ratio, _ := m.hitRatio()

	return models.SystemMetrics{
		CacheHitRatio:            ratio,
		CacheHits:                atomic.LoadUint64(&m.totals.cacheHits),
		CacheMisses:              atomic.LoadUint64(&m.totals.cacheMisses),
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		AllocationsTotal:         atomic.LoadUint64(&m.totals.allocations),
		AllocationConflicts:      atomic.LoadUint64(&m.totals.allocConflicts),
		AllocationRetries:        atomic.LoadUint64(&m.totals.allocRetries),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
