// Package metrics registers and records the service's Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tapd"

var registry = prometheus.NewRegistry()

// GetRegistry returns the registry the HTTP layer serves from /healthz.
func GetRegistry() *prometheus.Registry {
	return registry
}

var (
	tapsAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "taps_accepted_total",
		Help:      "Accepted tap requests.",
	})

	tapsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "taps_rejected_total",
		Help:      "Rejected tap requests by reason.",
	}, []string{"reason"})

	incrementLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tap_increment_latency_ms",
		Help:      "Ledger increment latency in milliseconds.",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 50, 100, 500},
	})

	countersCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tap_counters_created_total",
		Help:      "Tap counters created on a user's first tap in a round.",
	})

	refreshTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "leader_refresh_total",
		Help:      "Completed leader cache refreshes.",
	})

	refreshErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "leader_refresh_errors_total",
		Help:      "Failed leader cache refreshes.",
	})

	refreshDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "leader_refresh_dropped_total",
		Help:      "Refresh jobs shed because the queue was full.",
	})

	refreshQueueSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "refresh_queue_size",
		Help:      "Refresh jobs currently queued.",
	})

	refreshWorkerCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "refresh_worker_count",
		Help:      "Running refresh workers.",
	})

	storeShardCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "store_shard_count",
		Help:      "Lock-striped shards in the in-memory tap store.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method, and status.",
	}, []string{"endpoint", "method", "status"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request duration in milliseconds.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"endpoint", "method", "status"})

	systemMemory = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "system_memory_bytes",
		Help:      "Heap bytes currently allocated.",
	})

	systemGoroutines = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "system_goroutines",
		Help:      "Number of live goroutines.",
	})
)

func init() {
	registry.MustRegister(
		tapsAccepted,
		tapsRejected,
		incrementLatency,
		countersCreated,
		refreshTotal,
		refreshErrors,
		refreshDropped,
		refreshQueueSize,
		refreshWorkerCount,
		storeShardCount,
		httpRequests,
		httpRequestDuration,
		systemMemory,
		systemGoroutines,
	)
}

// RecordTapAccepted counts an accepted tap request.
func RecordTapAccepted() { tapsAccepted.Inc() }

// RecordTapRejected counts a rejected tap request by reason.
func RecordTapRejected(reason string) { tapsRejected.WithLabelValues(reason).Inc() }

// RecordIncrementLatency records one ledger increment's latency.
func RecordIncrementLatency(ms float64) { incrementLatency.Observe(ms) }

// RecordCounterCreated counts a lazily created tap counter.
func RecordCounterCreated() { countersCreated.Inc() }

// RecordRefresh counts a completed leader refresh.
func RecordRefresh() { refreshTotal.Inc() }

// RecordRefreshError counts a failed leader refresh.
func RecordRefreshError() { refreshErrors.Inc() }

// RecordRefreshDropped counts a refresh job shed on a full queue.
func RecordRefreshDropped() { refreshDropped.Inc() }

// UpdateRefreshQueueSize sets the current refresh queue depth.
func UpdateRefreshQueueSize(n int) { refreshQueueSize.Set(float64(n)) }

// UpdateRefreshWorkerCount sets the number of running refresh workers.
func UpdateRefreshWorkerCount(n int) { refreshWorkerCount.Set(float64(n)) }

// UpdateStoreShardCount sets the in-memory store's shard count.
func UpdateStoreShardCount(n int) { storeShardCount.Set(float64(n)) }

// RecordHTTPRequest counts one HTTP request.
func RecordHTTPRequest(endpoint, method, status string) {
	httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

// RecordHTTPRequestDuration records one HTTP request's duration.
func RecordHTTPRequestDuration(endpoint, method, status string, ms float64) {
	httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(ms)
}

// UpdateSystemMemoryUsage sets the allocated heap gauge.
func UpdateSystemMemoryUsage(bytes uint64) { systemMemory.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(n int) { systemGoroutines.Set(float64(n)) }
