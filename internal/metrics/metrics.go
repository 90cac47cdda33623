// Package metrics exposes Prometheus instrumentation for the job
// orchestrator and HTTP façade, generalized from the teacher's
// internal/metrics package (transcode_* series) to the score-capture
// pipeline's job/stage vocabulary. Ambient observability, carried
// regardless of spec.md's non-goals (SPEC_FULL.md §4).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP façade metrics.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scorecap_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scorecap_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Job lifecycle metrics.
	JobsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scorecap_jobs_created_total",
			Help: "Total number of capture jobs created",
		},
	)

	JobsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scorecap_jobs_completed_total",
			Help: "Total number of completed capture jobs",
		},
		[]string{"status"},
	)

	JobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scorecap_jobs_in_progress",
			Help: "Number of jobs currently being processed (0 or 1, single worker)",
		},
	)

	JobsQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scorecap_jobs_queue_depth",
			Help: "Number of jobs waiting in the FIFO queue",
		},
	)

	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scorecap_job_duration_seconds",
			Help:    "End-to-end job processing duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~4.5h
		},
	)

	// Per-stage instrumentation.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scorecap_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		},
		[]string{"stage"},
	)

	FramesExtracted = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scorecap_frames_extracted",
			Help:    "Number of frames extracted per job",
			Buckets: prometheus.ExponentialBuckets(4, 2, 12),
		},
	)

	FramesDeduped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scorecap_frames_deduped_total",
			Help: "Total number of near-duplicate frames rejected by the stitcher",
		},
	)

	PagesEmitted = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scorecap_pages_emitted",
			Help:    "Number of printable pages emitted per job",
			Buckets: prometheus.LinearBuckets(1, 1, 20),
		},
	)

	// Acceleration selection.
	AccelResizeBackend = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scorecap_accel_resize_backend",
			Help: "1 for the currently selected resize backend, 0 otherwise",
		},
		[]string{"backend"},
	)
)

// RecordHTTPRequest records a completed HTTP request.
func RecordHTTPRequest(method, endpoint, status string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordJobCreated records a newly queued capture job.
func RecordJobCreated() {
	JobsCreatedTotal.Inc()
}

// RecordJobCompleted records a terminal job outcome and its total duration.
func RecordJobCompleted(status string, durationSeconds float64) {
	JobsCompletedTotal.WithLabelValues(status).Inc()
	JobDuration.Observe(durationSeconds)
}

// UpdateJobMetrics refreshes the in-progress and queue-depth gauges.
func UpdateJobMetrics(inProgress, queueDepth int) {
	JobsInProgress.Set(float64(inProgress))
	JobsQueueDepth.Set(float64(queueDepth))
}

// RecordStageDuration records how long a single pipeline stage took.
func RecordStageDuration(stage string, durationSeconds float64) {
	StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordFrameCounts records per-job extraction and dedup counts.
func RecordFrameCounts(extracted, deduped int) {
	FramesExtracted.Observe(float64(extracted))
	FramesDeduped.Add(float64(deduped))
}

// RecordPagesEmitted records the number of printable pages a job produced.
func RecordPagesEmitted(pages int) {
	PagesEmitted.Observe(float64(pages))
}

// SetAccelResizeBackend marks backend as the active resize backend and
// clears the gauge for every other known backend.
func SetAccelResizeBackend(backend string, known []string) {
	for _, b := range known {
		if b == backend {
			AccelResizeBackend.WithLabelValues(b).Set(1)
		} else {
			AccelResizeBackend.WithLabelValues(b).Set(0)
		}
	}
}
