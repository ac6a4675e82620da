// Package metrics exposes Prometheus collectors for the inventory service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inventory_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	}, []string{"method", "route", "status"})
	ImportsValidatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_imports_validated_total",
		Help: "Uploaded import files by validation outcome",
	}, []string{"outcome"})
	ImportRowsCommittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inventory_import_rows_committed_total",
		Help: "Rows written by committed import batches",
	})
	ImportSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_import_submissions_total",
		Help: "Import batch submissions by mode and outcome",
	}, []string{"mode", "outcome"})
	FeaturesSavedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_features_saved_total",
		Help: "Features saved by operation",
	}, []string{"op"})
	FeaturesDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inventory_features_deleted_total",
		Help: "Features deleted",
	})
	PlacementTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_placement_transitions_total",
		Help: "Map placement actions by action and result",
	}, []string{"action", "result"})
	PlacementSessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "inventory_placement_sessions_active",
		Help: "Placement sessions currently held in memory",
	})
)

func init() {
	prometheus.MustRegister(HTTPRequestDurationMs)
	prometheus.MustRegister(ImportsValidatedTotal)
	prometheus.MustRegister(ImportRowsCommittedTotal)
	prometheus.MustRegister(ImportSubmissionsTotal)
	prometheus.MustRegister(FeaturesSavedTotal)
	prometheus.MustRegister(FeaturesDeletedTotal)
	prometheus.MustRegister(PlacementTransitionsTotal)
	prometheus.MustRegister(PlacementSessionsActive)
}

// Handler serves the registered collectors for scraping.
func Handler() http.Handler { return promhttp.Handler() }
