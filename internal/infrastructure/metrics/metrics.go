// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "completion"

// Certificate issuance outcomes.
const (
	OutcomeIssued   = "issued"
	OutcomeExisting = "existing"
	OutcomeRaced    = "raced"
)

// Consumer results.
const (
	ConsumeProcessed = "processed"
	ConsumeDuplicate = "duplicate"
	ConsumeFailed    = "failed"
	ConsumeInFlight  = "in_flight"
)

var (
	// Progress Metrics
	LessonCompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lesson_completions_total",
			Help:      "Lesson completion requests by whether they changed state",
		},
		[]string{"changed"},
	)

	CourseCompletionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "course_completions_total",
			Help:      "Enrollments that transitioned to fully complete",
		},
	)

	// Certificate Metrics
	CertificatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificates_total",
			Help:      "Certificate issuance calls by outcome",
		},
		[]string{"outcome"}, // "issued", "existing", "raced"
	)

	// Assessment Metrics
	AssessmentsGeneratedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_generated_total",
			Help:      "Final assessments generated",
		},
	)

	AssessmentQuestions = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assessment_questions",
			Help:      "Number of questions frozen into generated assessments",
			Buckets:   []float64{1, 2, 3, 5, 8, 10},
		},
	)

	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Assessment submissions by pass result",
		},
		[]string{"passed"},
	)

	SubmissionPercentage = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_percentage",
			Help:      "Distribution of submission percentages",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		},
	)

	// Messaging Metrics
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events handed to the bus",
		},
		[]string{"event_type", "result"},
	)

	EventsConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_consumed_total",
			Help:      "Events handled by consumers",
		},
		[]string{"consumer", "result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Notification Metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification delivery attempts",
		},
		[]string{"type", "status"},
	)

	// Maintenance Metrics
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled maintenance job runs by result",
		},
		[]string{"job", "result"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Scheduled maintenance job duration",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	// Cache Metrics
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by result",
		},
		[]string{"cache", "result"},
	)
)

// RecordLessonCompletion counts a mark-complete call.
func RecordLessonCompletion(changed bool) {
	LessonCompletionsTotal.WithLabelValues(strconv.FormatBool(changed)).Inc()
}

// RecordCourseCompleted counts a false→true completion transition.
func RecordCourseCompleted() {
	CourseCompletionsTotal.Inc()
}

// RecordCertificate counts an issuance call by outcome.
func RecordCertificate(outcome string) {
	CertificatesTotal.WithLabelValues(outcome).Inc()
}

// RecordAssessmentGenerated records a generated assessment.
func RecordAssessmentGenerated(questions int) {
	AssessmentsGeneratedTotal.Inc()
	AssessmentQuestions.Observe(float64(questions))
}

// RecordSubmission records a scored submission.
func RecordSubmission(percentage float64, passed bool) {
	SubmissionsTotal.WithLabelValues(strconv.FormatBool(passed)).Inc()
	SubmissionPercentage.Observe(percentage)
}

// RecordEventPublished records a publish attempt.
func RecordEventPublished(eventType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	EventsPublishedTotal.WithLabelValues(eventType, result).Inc()
}

// RecordEventConsumed records a consumer outcome.
func RecordEventConsumed(consumer, result string) {
	EventsConsumedTotal.WithLabelValues(consumer, result).Inc()
}

// SetCircuitBreakerState mirrors a breaker state change.
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordNotification records a delivery attempt.
func RecordNotification(typ, status string) {
	NotificationsTotal.WithLabelValues(typ, status).Inc()
}

// RecordCacheLookup records a hit or miss.
func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(cache, result).Inc()
}

// RecordJobRun records a finished maintenance job.
func RecordJobRun(job string, seconds float64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	JobRunsTotal.WithLabelValues(job, result).Inc()
	JobDuration.WithLabelValues(job).Observe(seconds)
}
