// Package metrics provides Prometheus metrics for the tree engine and its
// backends. Collection is always on; exposing them over HTTP is opt-in via
// the metrics.addr config key.
package metrics

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	directoryLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notetree_directory_loads_total",
			Help: "Directory listings issued to the backend",
		},
		[]string{"status"},
	)

	directoryLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notetree_directory_load_duration_seconds",
			Help:    "Backend directory listing latency",
			Buckets: prometheus.DefBuckets,
		},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notetree_cache_lookups_total",
			Help: "Children cache lookups by result (hit, miss, shared)",
		},
		[]string{"result"},
	)

	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notetree_mutations_total",
			Help: "Tree mutations by operation and outcome",
		},
		[]string{"op", "status"},
	)

	mutationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notetree_mutation_duration_seconds",
			Help:    "Backend round-trip time of tree mutations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	flattenDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notetree_flatten_duration_seconds",
			Help:    "Time spent producing the visible list",
			Buckets: []float64{.00005, .0001, .0005, .001, .005, .01, .05},
		},
		[]string{"mode"},
	)

	visibleRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notetree_visible_rows",
			Help: "Rows in the current flattened list",
		},
	)

	storageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notetree_storage_operations_total",
			Help: "Raw storage calls made by vault backends",
		},
		[]string{"backend", "operation", "status"},
	)

	storageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notetree_storage_operation_duration_seconds",
			Help:    "Raw storage call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)
)

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordDirectoryLoad records one backend listing.
func RecordDirectoryLoad(duration time.Duration, success bool) {
	directoryLoadsTotal.WithLabelValues(status(success)).Inc()
	directoryLoadDuration.Observe(duration.Seconds())
}

// RecordCacheHit records a listing served from the children cache.
func RecordCacheHit() {
	cacheLookupsTotal.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records a listing that had to go to the backend.
func RecordCacheMiss() {
	cacheLookupsTotal.WithLabelValues("miss").Inc()
}

// RecordSharedLoad records a caller that joined an in-flight listing.
func RecordSharedLoad() {
	cacheLookupsTotal.WithLabelValues("shared").Inc()
}

// RecordMutation records a coordinator operation.
func RecordMutation(op string, duration time.Duration, success bool) {
	mutationsTotal.WithLabelValues(op, status(success)).Inc()
	mutationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordRejectedMutation records an operation refused before any backend call.
func RecordRejectedMutation(op string) {
	mutationsTotal.WithLabelValues(op, "rejected").Inc()
}

// RecordFlatten records a flatten pass. mode is "full", "partial" or "filtered".
func RecordFlatten(mode string, duration time.Duration, rows int) {
	flattenDuration.WithLabelValues(mode).Observe(duration.Seconds())
	visibleRows.Set(float64(rows))
}

// RecordStorageOperation records a raw backend storage call.
func RecordStorageOperation(backend, operation string, duration time.Duration, success bool) {
	storageOperationsTotal.WithLabelValues(backend, operation, status(success)).Inc()
	storageOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// Serve exposes Handler on addr until ctx is cancelled. It returns once the
// listener is closed; failures to bind are logged, not fatal, since metrics
// are auxiliary to the TUI.
func Serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("warning: metrics endpoint on %s stopped: %v", addr, err)
	}
}
