package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var resolveTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "curator_resolve_total",
		Help: "Workshop entry resolutions by result.",
	},
	[]string{"result"},
)
