package procmon

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curator_procmon_scans_total",
		Help: "Total process table scans by result.",
	}, []string{"result"})

	processesStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "curator_procmon_processes_started_total",
		Help: "Total ProcessStarted events published.",
	})

	subscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "curator_procmon_subscribers",
		Help: "Current number of ProcessStarted subscribers.",
	})
)
