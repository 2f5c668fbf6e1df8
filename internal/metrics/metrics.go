package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensoralarm_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sensoralarm_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sensoralarm_http_request_size_bytes",
			Help:    "HTTP request size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "endpoint"},
	)

	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sensoralarm_http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "endpoint"},
	)

	// Batch metrics
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensoralarm_records_total",
			Help: "Total number of change records handled",
		},
		[]string{"outcome"}, // outcome: processed, failed, skipped
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sensoralarm_batch_size",
			Help:    "Number of change records per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sensoralarm_batch_duration_seconds",
			Help:    "Time taken to process a batch of change records",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// Evaluation metrics
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensoralarm_evaluations_total",
			Help: "Total number of threshold evaluations by resulting state",
		},
		[]string{"state"},
	)

	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensoralarm_transitions_total",
			Help: "Total number of alarm state transitions",
		},
		[]string{"from", "to"}, // from is "none" on first observation
	)

	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensoralarm_notifications_total",
			Help: "Total number of channel deliveries",
		},
		[]string{"channel", "status"}, // status: success, failed
	)

	NotificationRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensoralarm_notification_retries_total",
			Help: "Total number of channel delivery retries",
		},
		[]string{"channel"},
	)

	NotificationsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensoralarm_notifications_suppressed_total",
			Help: "Alarm evaluations not notified because of an active cooldown",
		},
	)

	// State store metrics
	StateWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensoralarm_state_writes_total",
			Help: "Total number of alarm state writes",
		},
		[]string{"reason"}, // reason: notified, notify_failed, transition, cooldown
	)

	StateWritesElided = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensoralarm_state_writes_elided_total",
			Help: "State writes skipped because the stored record was already identical",
		},
	)

	// Kafka change feed metrics
	KafkaMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensoralarm_kafka_messages_consumed_total",
			Help: "Total number of change-feed messages consumed",
		},
		[]string{"status"}, // status: decoded, malformed
	)

	KafkaCommitErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensoralarm_kafka_commit_errors_total",
			Help: "Total number of failed offset commits",
		},
	)

	DeadLettersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensoralarm_dead_letters_total",
			Help: "Total number of failed records published to the dead letter topic",
		},
		[]string{"status"}, // status: success, failed
	)

	DeadLetterPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensoralarm_dead_letter_publish_retries_total",
			Help: "Total number of dead letter publish retries",
		},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensoralarm_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
