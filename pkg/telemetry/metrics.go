package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the store, the generation engine and the HTTP
// surface. All are registered on the default registry and exposed at
// /metrics via promhttp.
var (
	MessagesAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "atelier",
		Name:      "messages_appended_total",
		Help:      "Messages appended to project timelines, by role.",
	}, []string{"role"})

	FragmentsAttached = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "atelier",
		Name:      "fragments_attached_total",
		Help:      "Fragments persisted together with their assistant message.",
	})

	ProjectsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "atelier",
		Name:      "projects_purged_total",
		Help:      "Soft-deleted projects removed by the retention runner.",
	})

	Generations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "atelier",
		Name:      "generations_total",
		Help:      "Generation turns by terminal outcome (fragment, text, error).",
	}, []string{"outcome"})

	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "atelier",
		Name:      "generation_duration_seconds",
		Help:      "Wall time of a generation turn from dequeue to terminal state.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "atelier",
		Name:      "engine_queue_depth",
		Help:      "Pending generation turns across all project queues.",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "atelier",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status class.",
	}, []string{"route", "status"})
)

// RegisterDiskUsage exposes the store's on-disk size as a gauge. It takes a
// closure to avoid an import cycle with the store package.
func RegisterDiskUsage(f func() float64) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "atelier",
		Name:      "store_disk_usage_bytes",
		Help:      "Estimated pebble on-disk size.",
	}, f)
}
