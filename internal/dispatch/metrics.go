package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	emailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supplai",
			Subsystem: "dispatch",
			Name:      "emails_total",
			Help:      "Supplier order emails handled by the dispatcher, by result.",
		},
		[]string{"result"},
	)
	sendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "supplai",
			Subsystem: "dispatch",
			Name:      "send_duration_seconds",
			Help:      "Time spent delivering one supplier order email, retries included.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	requeuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "supplai",
			Subsystem: "dispatch",
			Name:      "requeued_total",
			Help:      "Supplier orders put back on the queue by recovery passes.",
		},
	)
)

const (
	resultSent     = "sent"
	resultFailed   = "failed"
	resultSkipped  = "skipped"
	resultDisabled = "disabled"
)
