package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "transcript_worker"

// Metrics contains all Prometheus metrics for the transcript worker.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Job metrics
	JobsStarted   prometheus.Counter
	JobsCompleted prometheus.Counter
	JobsFailed    *prometheus.CounterVec
	JobsSkipped   prometheus.Counter
	ActiveJobs    prometheus.Gauge
	JobDuration   prometheus.Histogram
	StageDuration *prometheus.HistogramVec

	// Queue metrics
	DeliveriesReceived prometheus.Counter
	DeliveryOutcomes   *prometheus.CounterVec

	// Preprocessing metrics
	ChunksProcessed prometheus.Counter
	FallbackChunks  prometheus.Counter
	VADFrames       prometheus.Counter
	VADVoicedFrames prometheus.Counter
	SpeechSpans     prometheus.Counter
	AudioDuration   prometheus.Histogram

	// Model metrics
	ModelRequests *prometheus.CounterVec
	ModelDuration *prometheus.HistogramVec

	// Storage metrics
	StorageOperations *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg. A nil reg
// registers with the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Job metrics
		JobsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_started_total",
			Help:      "Total number of transcription jobs picked up",
		}),
		JobsCompleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Total number of transcription jobs completed",
		}),
		JobsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failed_total",
			Help:      "Total number of transcription jobs failed, by error kind",
		}, []string{"kind"}),
		JobsSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_skipped_total",
			Help:      "Total number of redelivered tasks for jobs already in a terminal state",
		}),
		ActiveJobs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_jobs",
			Help:      "Current number of jobs being processed",
		}),
		JobDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "End-to-end duration of transcription jobs",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~2.3 hours
		}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 18), // 10ms to ~43 minutes
		}, []string{"stage"}),

		// Queue metrics
		DeliveriesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_received_total",
			Help:      "Total number of task deliveries received from the queue",
		}),
		DeliveryOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_outcomes_total",
			Help:      "Task deliveries by acknowledgement outcome",
		}, []string{"outcome"}),

		// Preprocessing metrics
		ChunksProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_processed_total",
			Help:      "Total number of audio chunks preprocessed",
		}),
		FallbackChunks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_chunks_total",
			Help:      "Total number of chunks with no detected speech",
		}),
		VADFrames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vad_frames_total",
			Help:      "Total number of VAD frames classified",
		}),
		VADVoicedFrames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vad_voiced_frames_total",
			Help:      "Total number of VAD frames classified as speech",
		}),
		SpeechSpans: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_spans_total",
			Help:      "Total number of speech spans enhanced",
		}),
		AudioDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audio_duration_seconds",
			Help:      "Duration of processed recordings",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 12), // 10s to ~5.7 hours
		}),

		// Model metrics
		ModelRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_requests_total",
			Help:      "Total number of model requests by operation and result",
		}, []string{"operation", "result"}),
		ModelDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_request_duration_seconds",
			Help:      "Duration of model requests",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~27 minutes
		}, []string{"operation"}),

		// Storage metrics
		StorageOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operations_total",
			Help:      "Total number of blob and job store operations by result",
		}, []string{"operation", "result"}),

		// HTTP API metrics
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordJobStarted increments started jobs and the active gauge
func (m *Metrics) RecordJobStarted() {
	if m == nil {
		return
	}
	m.JobsStarted.Inc()
	m.ActiveJobs.Inc()
}

// RecordJobCompleted records a completed job and its duration
func (m *Metrics) RecordJobCompleted(durationSeconds float64) {
	if m == nil {
		return
	}
	m.JobsCompleted.Inc()
	m.ActiveJobs.Dec()
	m.JobDuration.Observe(durationSeconds)
}

// RecordJobFailed records a failed job by error kind
func (m *Metrics) RecordJobFailed(kind string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.JobsFailed.WithLabelValues(kind).Inc()
	m.ActiveJobs.Dec()
	m.JobDuration.Observe(durationSeconds)
}

// RecordJobSkipped increments the skipped redeliveries counter
func (m *Metrics) RecordJobSkipped() {
	if m == nil {
		return
	}
	m.JobsSkipped.Inc()
}

// RecordStage records the duration of one pipeline stage
func (m *Metrics) RecordStage(stage string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordDelivery increments the deliveries received counter
func (m *Metrics) RecordDelivery() {
	if m == nil {
		return
	}
	m.DeliveriesReceived.Inc()
}

// RecordDeliveryOutcome records how a delivery was settled (ack, reject, requeue)
func (m *Metrics) RecordDeliveryOutcome(outcome string) {
	if m == nil {
		return
	}
	m.DeliveryOutcomes.WithLabelValues(outcome).Inc()
}

// RecordPreprocessing records chunk, VAD and span counts for one recording
func (m *Metrics) RecordPreprocessing(chunks, fallbackChunks, frames, voicedFrames, spans int, audioSeconds float64) {
	if m == nil {
		return
	}
	m.ChunksProcessed.Add(float64(chunks))
	m.FallbackChunks.Add(float64(fallbackChunks))
	m.VADFrames.Add(float64(frames))
	m.VADVoicedFrames.Add(float64(voicedFrames))
	m.SpeechSpans.Add(float64(spans))
	m.AudioDuration.Observe(audioSeconds)
}

// RecordModelRequest records one model call (transcribe or diarize)
func (m *Metrics) RecordModelRequest(operation string, success bool, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ModelRequests.WithLabelValues(operation, result(success)).Inc()
	m.ModelDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordStorageOperation records one storage call
func (m *Metrics) RecordStorageOperation(operation string, success bool) {
	if m == nil {
		return
	}
	m.StorageOperations.WithLabelValues(operation, result(success)).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
