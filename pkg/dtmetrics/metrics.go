// Package dtmetrics provides disktree's prometheus collectors for
// scan, query, and mutation activity. The HTTP endpoint that exposes
// Handler() is an out-of-scope external collaborator (spec.md §1); this
// package only registers and updates the collectors themselves.
package dtmetrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scan lifecycle metrics
	ScansRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "disktree_scans_running",
			Help: "Number of scan jobs currently running",
		},
	)

	ScansCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "disktree_scans_completed_total",
			Help: "Total number of scans by terminal status",
		},
		[]string{"status"},
	)

	ScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "disktree_scan_duration_seconds",
			Help:    "Wall-clock duration of a completed scan",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600, 14400},
		},
	)

	ScanItemsFound = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "disktree_scan_items_found",
			Help:    "Number of items observed by a completed scan",
			Buckets: prometheus.ExponentialBuckets(100, 10, 7),
		},
	)

	ScanErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "disktree_scan_errors_total",
			Help: "Total number of permission/transient errors observed across all scans",
		},
	)

	// Planner metrics
	ViewDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "disktree_view_duration_seconds",
			Help:    "Time taken to assemble a View",
			Buckets: prometheus.DefBuckets,
		},
	)

	ViewStatusTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "disktree_view_status_total",
			Help: "Total number of view() calls by resulting scan_status",
		},
		[]string{"status"},
	)

	CompareDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "disktree_compare_duration_seconds",
			Help:    "Time taken to compare two scans",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Mutator metrics
	DeletesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "disktree_deletes_total",
			Help: "Total number of delete() calls by outcome",
		},
		[]string{"outcome"},
	)

	DeletedBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "disktree_deleted_bytes_total",
			Help: "Cumulative bytes removed by delete()",
		},
	)

	// Catalog metrics
	CatalogBlobsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "disktree_catalog_blobs_total",
			Help: "Number of blobs currently referenced by the catalog",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ScansRunning,
		ScansCompletedTotal,
		ScanDuration,
		ScanItemsFound,
		ScanErrorsTotal,
		ViewDuration,
		ViewStatusTotal,
		CompareDuration,
		DeletesTotal,
		DeletedBytesTotal,
		CatalogBlobsTotal,
	)
}

// Handler returns the prometheus HTTP handler for embedding into an
// external HTTP server; disktree's core never mounts it itself.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed wall-clock time for a single operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records elapsed time into histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Elapsed returns the time since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
