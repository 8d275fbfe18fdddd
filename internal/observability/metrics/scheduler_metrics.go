package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Error types for job failure log lines.
const (
	SchedulerErrorTypeDeadlineExceeded = "deadline_exceeded"
	SchedulerErrorTypeDB               = "db"
	SchedulerErrorTypeBusinessRule     = "business_rule"
	SchedulerErrorTypeUnknown          = "unknown"
)

// Reasons for the job error and deferral counters.
const (
	SchedulerJobReasonDeadlineExceeded     = "deadline_exceeded"
	SchedulerJobReasonDBLockTimeout        = "db_lock_timeout"
	SchedulerJobReasonSerializationFailure = "serialization_failure"
	SchedulerJobReasonUniqueViolation      = "unique_violation"
	SchedulerJobReasonUnknown              = "unknown"

	SchedulerBatchDeferredReasonLockHeld = "lock_held"
)

// Resources counted per reminder pass.
const (
	ResourceUsers         = "users"
	ResourceNotifications = "notifications"
)

const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgUniqueViolation      = "23505"
)

var secondsBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// SchedulerMetrics are the prometheus series for the reminder loop. They are
// scraped from /metrics on both the API and the worker.
type SchedulerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	batchProcessed *prometheus.CounterVec
	batchDeferred  *prometheus.CounterVec
	runLoopLag     prometheus.Histogram
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

// Scheduler returns the process-wide scheduler metrics.
func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{})
}

// SchedulerWithConfig registers the scheduler metrics on first use. Later
// calls return the same instance whatever cfg says.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return schedulerMetrics
}

func ResetSchedulerMetricsForTest() {
	schedulerMetricsOnce = sync.Once{}
	schedulerMetrics = nil
}

func newSchedulerMetrics(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	labels := constLabelsFor(cfg)
	counter := func(name, help string, vars ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "kilekitabu_scheduler_" + name,
			Help:        help,
			ConstLabels: labels,
		}, vars)
	}

	m := &SchedulerMetrics{
		jobRuns:        counter("job_runs_total", "Reminder job runs.", "job"),
		jobTimeouts:    counter("job_timeouts_total", "Reminder job runs cut short by the job timeout.", "job"),
		jobErrors:      counter("job_errors_total", "Reminder job failures by reason.", "job", "reason"),
		batchProcessed: counter("batch_processed_total", "Users scanned and notifications sent by reminder jobs.", "job", "resource"),
		batchDeferred:  counter("batch_deferred_total", "Reminder job runs skipped because another replica held the job.", "job", "reason"),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "kilekitabu_scheduler_job_duration_seconds",
			Help:        "Reminder job latency.",
			Buckets:     secondsBuckets,
			ConstLabels: labels,
		}, []string{"job"}),
		runLoopLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "kilekitabu_scheduler_runloop_lag_seconds",
			Help:        "Delay between the planned tick and the start of a pass.",
			Buckets:     secondsBuckets,
			ConstLabels: labels,
		}),
	}
	registerer.MustRegister(
		m.jobRuns, m.jobDuration, m.jobTimeouts, m.jobErrors,
		m.batchProcessed, m.batchDeferred, m.runLoopLag,
	)
	return m
}

// constLabelsFor is the service/env pair stamped on every prometheus series.
func constLabelsFor(cfg Config) prometheus.Labels {
	return prometheus.Labels{
		"service": firstNonEmpty(cfg.ServiceName, "kilekitabu"),
		"env":     firstNonEmpty(cfg.Environment, "unknown"),
	}
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m != nil {
		m.jobRuns.WithLabelValues(job).Inc()
	}
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m != nil {
		m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
	}
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m != nil {
		m.jobTimeouts.WithLabelValues(job).Inc()
	}
}

// IncJobError counts err under its classified reason.
func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m != nil && err != nil {
		m.jobErrors.WithLabelValues(job, ClassifySchedulerJobReason(err)).Inc()
	}
}

func (m *SchedulerMetrics) AddBatchProcessed(job, resource string, count int) {
	if m != nil && count > 0 {
		m.batchProcessed.WithLabelValues(job, resource).Add(float64(count))
	}
}

func (m *SchedulerMetrics) IncBatchDeferred(job, reason string) {
	if m != nil {
		m.batchDeferred.WithLabelValues(job, reason).Inc()
	}
}

func (m *SchedulerMetrics) ObserveRunLoopLag(d time.Duration) {
	if m != nil {
		m.runLoopLag.Observe(max(d, 0).Seconds())
	}
}

// failure is the classification of one job error.
type failure struct {
	errorType string
	reason    string
	retryable bool
}

func classify(err error) failure {
	switch {
	case err == nil:
		return failure{errorType: SchedulerErrorTypeUnknown, reason: SchedulerJobReasonUnknown}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return failure{SchedulerErrorTypeDeadlineExceeded, SchedulerJobReasonDeadlineExceeded, true}
	}

	f := failure{errorType: SchedulerErrorTypeBusinessRule, reason: SchedulerJobReasonUnknown}
	if isDBError(err) {
		f.errorType = SchedulerErrorTypeDB
		f.retryable = true
	}
	switch {
	case hasPGCode(err, pgLockNotAvailable):
		f.reason = SchedulerJobReasonDBLockTimeout
	case hasPGCode(err, pgSerializationFailure):
		f.reason = SchedulerJobReasonSerializationFailure
	case isUniqueViolation(err):
		f.reason = SchedulerJobReasonUniqueViolation
	}
	return f
}

// ClassifySchedulerErrorType names the error family for log lines.
func ClassifySchedulerErrorType(err error) string { return classify(err).errorType }

// IsSchedulerErrorRetryable reports whether the next tick can be expected to
// succeed: timeouts and database faults, but not bad data.
func IsSchedulerErrorRetryable(err error) bool { return err != nil && classify(err).retryable }

// ClassifySchedulerJobReason maps err to a low-cardinality counter label.
func ClassifySchedulerJobReason(err error) string { return classify(err).reason }

// isUniqueViolation recognises duplicate-key errors from gorm, pgx and lib/pq.
func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, pgUniqueViolation)
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == code
	}
	return false
}

var gormDBErrors = []error{
	gorm.ErrInvalidDB,
	gorm.ErrInvalidTransaction,
	gorm.ErrInvalidField,
	gorm.ErrInvalidData,
	gorm.ErrMissingWhereClause,
	gorm.ErrUnsupportedDriver,
	gorm.ErrInvalidValue,
	gorm.ErrDuplicatedKey,
}

func isDBError(err error) bool {
	for _, target := range gormDBErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	return errors.As(err, &pgErr) || errors.As(err, &pqErr)
}
