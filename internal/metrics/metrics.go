package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API metrics
	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uxie_api_request_duration_seconds",
			Help:    "LLM API request duration in seconds by model",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~100s
		},
		[]string{"model", "status"},
	)

	rateLimiterWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uxie_rate_limiter_wait_duration_seconds",
			Help:    "Rate limiter wait duration in seconds by model",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		},
		[]string{"model"},
	)

	// Pipeline metrics
	phaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uxie_phase_duration_seconds",
			Help:    "Course orchestrator phase duration",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17min
		},
		[]string{"phase"}, // info, plan, chapters, persist
	)

	contentAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "uxie_content_attempts",
			Help:    "Model calls used per chapter content generation",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	contentOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uxie_content_outcomes_total",
			Help: "Chapter content outcomes",
		},
		[]string{"outcome"}, // succeeded, fallback
	)

	validationResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uxie_validation_results_total",
			Help: "Validator verdicts by result",
		},
		[]string{"result"}, // valid, invalid, format_violation, generator_error
	)

	generationThroughput = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uxie_generation_total",
			Help: "Single-call generator invocations",
		},
		[]string{"generator", "status"}, // generator: info/plan/quiz/grading/chat, status: success/error
	)

	courseOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uxie_courses_total",
			Help: "Course generations by terminal state",
		},
		[]string{"status"}, // completed, persist_failed, failed
	)

	persistenceResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uxie_persistence_total",
			Help: "Course persistence attempts",
		},
		[]string{"status"},
	)

	activeChapters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "uxie_active_chapters",
			Help: "Chapters currently being generated",
		},
	)

	activeRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "uxie_active_runs",
			Help: "Workflow runs currently executing",
		},
	)
)

// Collector provides convenience methods for recording metrics.
// A nil *Collector is valid and records nothing.
type Collector struct {
	logger *slog.Logger
}

// NewCollector creates a new metrics collector
func NewCollector(logger *slog.Logger) *Collector {
	return &Collector{
		logger: logger,
	}
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordAPIRequest records an API request duration
func (c *Collector) RecordAPIRequest(model string, duration time.Duration, success bool) {
	if c == nil {
		return
	}
	apiRequestDuration.WithLabelValues(model, statusLabel(success)).Observe(duration.Seconds())
}

// RecordRateLimiterWait records rate limiter wait time
func (c *Collector) RecordRateLimiterWait(model string, duration time.Duration) {
	if c == nil {
		return
	}
	rateLimiterWaitDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordPhase records an orchestrator phase duration
func (c *Collector) RecordPhase(phase string, duration time.Duration) {
	if c == nil {
		return
	}
	phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordContentOutcome records how many attempts a chapter needed and whether it fell back
func (c *Collector) RecordContentOutcome(attempts int, fallback bool) {
	if c == nil {
		return
	}
	contentAttempts.Observe(float64(attempts))
	outcome := "succeeded"
	if fallback {
		outcome = "fallback"
	}
	contentOutcomes.WithLabelValues(outcome).Inc()
}

// RecordValidation records a single validation verdict
func (c *Collector) RecordValidation(result string) {
	if c == nil {
		return
	}
	validationResults.WithLabelValues(result).Inc()
}

// IncrementGeneration increments the single-call generator counter
func (c *Collector) IncrementGeneration(generator string, success bool) {
	if c == nil {
		return
	}
	generationThroughput.WithLabelValues(generator, statusLabel(success)).Inc()
}

// RecordCourse records a course's terminal state
func (c *Collector) RecordCourse(status string) {
	if c == nil {
		return
	}
	courseOutcomes.WithLabelValues(status).Inc()
}

// RecordPersistence records a persistence attempt
func (c *Collector) RecordPersistence(success bool) {
	if c == nil {
		return
	}
	persistenceResults.WithLabelValues(statusLabel(success)).Inc()
}

// ChapterStarted and ChapterFinished track in-flight chapters
func (c *Collector) ChapterStarted() {
	if c == nil {
		return
	}
	activeChapters.Inc()
}

func (c *Collector) ChapterFinished() {
	if c == nil {
		return
	}
	activeChapters.Dec()
}

// RunStarted and RunFinished track in-flight workflow runs
func (c *Collector) RunStarted() {
	if c == nil {
		return
	}
	activeRuns.Inc()
}

func (c *Collector) RunFinished() {
	if c == nil {
		return
	}
	activeRuns.Dec()
}
