// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "interview_assistant"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Interview pipeline metrics
	InterviewsTotal    *prometheus.CounterVec
	InterviewsActive   prometheus.Gauge
	InterviewDuration  *prometheus.HistogramVec
	StageLatency       *prometheus.HistogramVec
	CleanupFailures    *prometheus.CounterVec
	TranscriptionPolls prometheus.Counter
	TranscriptionJobs  *prometheus.CounterVec

	// Inbound webhook metrics
	WebhookEvents  *prometheus.CounterVec
	DedupDropped   *prometheus.CounterVec
	DedupPruned    prometheus.Counter
	EventOutcomes  *prometheus.CounterVec
	DeliveriesSent *prometheus.CounterVec

	// Audio metrics
	TranscodeAttempts *prometheus.CounterVec
	AudioBytesIn      *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Storage retention
	RetentionDeleted prometheus.Counter
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		InterviewsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interviews_total",
			Help:      "Total number of interview pipeline invocations",
		}, []string{"input", "outcome"}),
		InterviewsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "interviews_active",
			Help:      "Number of pipeline invocations currently running",
		}),
		InterviewDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "interview_duration_seconds",
			Help:      "End-to-end pipeline duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"input"}),
		StageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_latency_seconds",
			Help:      "Latency of individual pipeline stages in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 180},
		}, []string{"stage"}),
		CleanupFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_failures_total",
			Help:      "Temporary artifacts that could not be removed",
		}, []string{"kind"}),
		TranscriptionPolls: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_polls_total",
			Help:      "Total number of transcription job status polls",
		}),
		TranscriptionJobs: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_jobs_total",
			Help:      "Transcription jobs by provider and terminal outcome",
		}, []string{"provider", "outcome"}),

		WebhookEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Inbound webhook messages by channel and content type",
		}, []string{"channel", "content"}),
		DedupDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedup_dropped_total",
			Help:      "Inbound messages dropped at the dedup gate",
		}, []string{"channel", "reason"}),
		DedupPruned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedup_pruned_total",
			Help:      "Expired message ids removed from the dedup store",
		}),
		EventOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_outcomes_total",
			Help:      "Terminal routing state of inbound messages",
		}, []string{"channel", "state"}),
		DeliveriesSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Outbound channel sends by channel, kind and result",
		}, []string{"channel", "kind", "result"}),

		TranscodeAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcode_attempts_total",
			Help:      "Transcoding attempts by strategy and result",
		}, []string{"strategy", "result"}),
		AudioBytesIn: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Audio bytes received by source",
		}, []string{"source"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		RetentionDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_deleted_total",
			Help:      "Reply audio objects removed by the retention sweeper",
		}),
	}
}

// RecordInterviewStart marks a pipeline invocation as running.
func (m *Metrics) RecordInterviewStart() {
	m.InterviewsActive.Inc()
}

// RecordInterviewEnd records the outcome of a pipeline invocation.
func (m *Metrics) RecordInterviewEnd(input string, success bool, durationSeconds float64) {
	m.InterviewsActive.Dec()
	m.InterviewDuration.WithLabelValues(input).Observe(durationSeconds)
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.InterviewsTotal.WithLabelValues(input, outcome).Inc()
}

// RecordStage records how long a pipeline stage took.
func (m *Metrics) RecordStage(stage string, seconds float64) {
	m.StageLatency.WithLabelValues(stage).Observe(seconds)
}

// RecordCleanupFailure records an artifact that could not be removed.
func (m *Metrics) RecordCleanupFailure(kind string) {
	m.CleanupFailures.WithLabelValues(kind).Inc()
}

// RecordPoll records one transcription status poll.
func (m *Metrics) RecordPoll() {
	m.TranscriptionPolls.Inc()
}

// RecordTranscriptionJob records the terminal outcome of a job.
func (m *Metrics) RecordTranscriptionJob(provider, outcome string) {
	m.TranscriptionJobs.WithLabelValues(provider, outcome).Inc()
}

// RecordWebhookEvent records a normalized inbound message.
func (m *Metrics) RecordWebhookEvent(channel, content string) {
	m.WebhookEvents.WithLabelValues(channel, content).Inc()
}

// RecordDedupDrop records a message dropped at the dedup gate.
func (m *Metrics) RecordDedupDrop(channel, reason string) {
	m.DedupDropped.WithLabelValues(channel, reason).Inc()
}

// RecordDedupPruned records expired ids removed by the dedup janitor.
func (m *Metrics) RecordDedupPruned(n int64) {
	m.DedupPruned.Add(float64(n))
}

// RecordEventOutcome records the terminal routing state of a message.
func (m *Metrics) RecordEventOutcome(channel, state string) {
	m.EventOutcomes.WithLabelValues(channel, state).Inc()
}

// RecordDelivery records an outbound channel send.
func (m *Metrics) RecordDelivery(channel, kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.DeliveriesSent.WithLabelValues(channel, kind, result).Inc()
}

// RecordTranscode records one transcoding strategy attempt.
func (m *Metrics) RecordTranscode(strategy string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.TranscodeAttempts.WithLabelValues(strategy, result).Inc()
}

// RecordAudioReceived records audio bytes received from a source.
func (m *Metrics) RecordAudioReceived(source string, bytes int64) {
	m.AudioBytesIn.WithLabelValues(source).Add(float64(bytes))
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordRetentionDeleted records objects removed by the retention sweeper.
func (m *Metrics) RecordRetentionDeleted(n int) {
	m.RetentionDeleted.Add(float64(n))
}
