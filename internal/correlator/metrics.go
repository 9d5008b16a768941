package correlator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "curator_process_events_total",
		Help: "Total ProcessStarted events handled by the correlator, by result.",
	},
	[]string{"result"},
)
