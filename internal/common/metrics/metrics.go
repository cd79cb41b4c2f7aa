// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_messages_processed_total",
			Help: "Total number of inbound messages processed",
		},
		[]string{"message_type"},
	)

	IntentsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_intents_detected_total",
			Help: "Total number of detected intents by label",
		},
		[]string{"intent"},
	)

	GenerationJobsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_generation_jobs_submitted_total",
			Help: "Total number of generation jobs accepted for admission",
		},
	)

	GenerationJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_generation_jobs_completed_total",
			Help: "Total number of generation jobs finished, by outcome",
		},
		[]string{"outcome"},
	)

	GenerationJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_generation_jobs_failed_total",
			Help: "Total number of generation jobs failed, by error code",
		},
		[]string{"error_code"},
	)

	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bot_generation_duration_seconds",
			Help:    "Duration of generation jobs in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	GenerationSlotsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_generation_slots_active",
			Help: "Number of generation jobs currently holding a slot",
		},
	)

	GenerationQueueWaiters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_generation_queue_waiters",
			Help: "Number of users waiting for a generation slot",
		},
	)
)
