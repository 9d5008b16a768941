package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	catalogRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_catalog_requests_total",
			Help: "Total catalog entry lookups by status.",
		},
		[]string{"status"},
	)
	catalogRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "curator_catalog_request_duration_seconds",
			Help:    "Duration of catalog entry HTTP requests.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)
