package models

import "time"

// SystemMetrics is a lightweight aggregate snapshot served alongside
// the Prometheus endpoint for dashboard consumption.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	AllocationsTotal         uint64    `json:"allocations_total"`
	AllocationConflicts      uint64    `json:"allocation_conflicts"`
	AllocationRetries        uint64    `json:"allocation_retries"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
