// Package metrics holds the Prometheus collectors shared by the catalog
// pipeline. Collectors register on the default registry and are served at
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AssetLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exercisehub_asset_lookups_total",
		Help: "Hero asset resolutions by cache result (hit, miss) and outcome (found, missing)",
	}, []string{"cache", "outcome"})

	StoreOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "exercisehub_store_op_duration_seconds",
		Help:    "Override store operation latency",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
	}, []string{"op", "status"})

	DegradedReads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exercisehub_degraded_reads_total",
		Help: "Reads served base-only because the override store was unavailable",
	})

	Invalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exercisehub_invalidations_total",
		Help: "Cache invalidations by kind (tag, path) and status",
	}, []string{"kind", "status"})

	AdminAuth = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exercisehub_admin_auth_total",
		Help: "Admin guard decisions by outcome",
	}, []string{"outcome"})

	EditorialScans = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exercisehub_editorial_scans_total",
		Help: "Full scans of the editorial documents",
	})
)

// Status labels an operation result for metrics.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
