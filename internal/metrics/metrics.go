// Package metrics defines the prometheus collectors for the fleet monitor
// container.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestsTotal counts ingest attempts by source and outcome.
	IngestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fmc_ingests_total",
		Help: "Total number of telemetry ingest attempts",
	}, []string{"source", "outcome"})

	// IngestDuration observes end-to-end ingest latency.
	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fmc_ingest_duration_seconds",
		Help:    "Duration of telemetry ingest operations",
		Buckets: prometheus.DefBuckets,
	})

	// ClassificationFailures counts classifications skipped due to bad input.
	ClassificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fmc_classification_failures_total",
		Help: "Total number of classifications skipped due to invalid telemetry values",
	})

	// SubscriberDrops counts subscribers removed after delivery failures.
	SubscriberDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fmc_subscriber_drops_total",
		Help: "Total number of subscribers dropped after a delivery failure",
	})

	// OfflineTransitions counts watchdog online-to-offline demotions.
	OfflineTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fmc_offline_transitions_total",
		Help: "Total number of devices demoted to offline by the watchdog",
	})
)

// RegisterGauges registers callback gauges for live registry sizes.
func RegisterGauges(deviceCount, subscriberCount func() int) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "fmc_devices_registered",
		Help: "Number of devices currently registered",
	}, func() float64 { return float64(deviceCount()) })

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "fmc_subscribers",
		Help: "Number of live subscribers",
	}, func() float64 { return float64(subscriberCount()) })
}
