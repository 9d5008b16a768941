package module

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stateGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "curator_module_state",
		Help: "Lifecycle state: 0=Disabled 1=Enabling 2=Enabled 3=Disabling.",
	})
	indexDetections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "curator_index_detections",
		Help: "Detections currently pending in the index.",
	})
	enableTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curator_module_enable_total",
		Help: "Enable attempts by result.",
	}, []string{"result"})
)
