// Package metrics provides Prometheus metrics for the artifact index.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "artindex"

var (
	// OperationsTotal counts index operations.
	// Labels: op (sync, remove, query, text_search, vector_search, ...), result (success, error)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of index operations",
		},
		[]string{"op", "result"},
	)

	// OperationDuration tracks how long index operations take.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of index operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// SearchDegradedTotal counts searches that returned empty because an
	// engine failed. Labels: engine (fts, vector), reason
	SearchDegradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_degraded_total",
			Help:      "Total number of searches degraded to an empty result",
		},
		[]string{"engine", "reason"},
	)

	// EmbeddingFailuresTotal counts embeddings that failed during sync.
	EmbeddingFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_failures_total",
			Help:      "Total number of vector rows skipped because embedding failed",
		},
	)

	// EmbeddingsEnabled is 1 when a model is loaded, 0 otherwise.
	EmbeddingsEnabled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "embeddings_enabled",
			Help:      "Whether semantic search has a loaded model (1=yes, 0=no)",
		},
	)

	// RebuildFilesTotal counts metadata files seen by rebuilds.
	// Labels: result (indexed, failed, removed)
	RebuildFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rebuild",
			Name:      "files_total",
			Help:      "Total number of metadata files processed by rebuilds",
		},
		[]string{"result"},
	)

	// SearchCacheTotal counts hybrid search cache lookups.
	// Labels: result (hit, miss)
	SearchCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "cache_lookups_total",
			Help:      "Total number of search cache lookups",
		},
		[]string{"result"},
	)
)

// Observe records one operation outcome and its duration.
func Observe(op string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	OperationsTotal.WithLabelValues(op, result).Inc()
	OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Degraded records a search that fell back to an empty result.
func Degraded(engine, reason string) {
	SearchDegradedTotal.WithLabelValues(engine, reason).Inc()
}

// SetEmbeddingsEnabled flips the embeddings gauge.
func SetEmbeddingsEnabled(enabled bool) {
	if enabled {
		EmbeddingsEnabled.Set(1)
		return
	}
	EmbeddingsEnabled.Set(0)
}
