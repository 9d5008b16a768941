package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var buildTriggersTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "curator_index_build_triggers_total",
		Help: "Curation triggers processed by the index builder, by outcome.",
	},
	[]string{"result"},
)
