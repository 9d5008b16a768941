package notifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	outcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_notifier_outcomes_total",
			Help: "Install outcomes seen by the notifier, by result.",
		},
		[]string{"result"},
	)
	webhookSendTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_webhook_send_total",
			Help: "Total webhook send attempts by status.",
		},
		[]string{"status"},
	)
	webhookSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "curator_webhook_send_duration_seconds",
			Help:    "Duration of webhook HTTP requests.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)
)
