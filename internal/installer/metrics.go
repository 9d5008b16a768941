package installer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	installsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_installs_total",
			Help: "Finished installs by outcome status.",
		},
		[]string{"status"},
	)
	installDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "curator_install_duration_seconds",
			Help:    "Duration of installs by outcome status.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"status"},
	)
	installsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "curator_installs_in_flight",
		Help: "Installs currently running.",
	})
	downloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "curator_download_bytes_total",
		Help: "Bytes downloaded by the HTTP installer.",
	})
)
