package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/kilekitabu/internal/clock"
	obsmetrics "github.com/smallbiznis/kilekitabu/internal/observability/metrics"
	"github.com/smallbiznis/kilekitabu/internal/ratelimit"
	reminderdomain "github.com/smallbiznis/kilekitabu/internal/reminder/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeReminders struct {
	lowCreditCalls int
	debtCalls      int
	lowCreditErr   error
	lowCredit      reminderdomain.Summary
	debts          reminderdomain.Summary
}

func (f *fakeReminders) ScanLowCredit(context.Context) (reminderdomain.Summary, error) {
	f.lowCreditCalls++
	return f.lowCredit, f.lowCreditErr
}

func (f *fakeReminders) ScanDebtReminders(context.Context) (reminderdomain.Summary, error) {
	f.debtCalls++
	return f.debts, nil
}

func newTestScheduler(t *testing.T, reminders reminderdomain.Service, locker *ratelimit.Locker, cfg Config) *Scheduler {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	s, err := New(Params{
		Log:       zap.NewNop(),
		Reminders: reminders,
		Locker:    locker,
		GenID:     node,
		Clock:     clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
		Config:    cfg,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s
}

func useTestRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	t.Cleanup(restore)

	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "kilekitabu",
		Environment: "test",
	})
	return registry
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	if _, err := New(Params{Log: zap.NewNop()}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	registry := useTestRegistry(t)

	s := newTestScheduler(t, &fakeReminders{}, nil, Config{})
	err := s.runJob(context.Background(), "timeout_job", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	labels := map[string]string{
		"service": "kilekitabu",
		"env":     "test",
		"job":     "timeout_job",
	}
	if got := getCounterValue(t, registry, "kilekitabu_scheduler_job_timeouts_total", labels); got != 1 {
		t.Fatalf("expected timeout count 1, got %v", got)
	}

	errorLabels := map[string]string{
		"service": "kilekitabu",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.SchedulerJobReasonDeadlineExceeded,
	}
	if got := getCounterValue(t, registry, "kilekitabu_scheduler_job_errors_total", errorLabels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

func TestRunOnceRunsBothReminderJobs(t *testing.T) {
	registry := useTestRegistry(t)

	reminders := &fakeReminders{
		lowCredit: reminderdomain.Summary{Job: reminderdomain.JobLowCredit, UsersScanned: 4, NotificationsSent: 2},
		debts:     reminderdomain.Summary{Job: reminderdomain.JobDebtReminders, UsersScanned: 3, NotificationsSent: 1},
	}
	s := newTestScheduler(t, reminders, nil, Config{})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if reminders.lowCreditCalls != 1 || reminders.debtCalls != 1 {
		t.Fatalf("expected one call per job, got low=%d debt=%d", reminders.lowCreditCalls, reminders.debtCalls)
	}

	for _, job := range []string{reminderdomain.JobLowCredit, reminderdomain.JobDebtReminders} {
		labels := map[string]string{"service": "kilekitabu", "env": "test", "job": job}
		if got := getCounterValue(t, registry, "kilekitabu_scheduler_job_runs_total", labels); got != 1 {
			t.Fatalf("expected 1 run for %s, got %v", job, got)
		}
	}

	processed := map[string]string{
		"service":  "kilekitabu",
		"env":      "test",
		"job":      reminderdomain.JobLowCredit,
		"resource": obsmetrics.ResourceNotifications,
	}
	if got := getCounterValue(t, registry, "kilekitabu_scheduler_batch_processed_total", processed); got != 2 {
		t.Fatalf("expected 2 notifications recorded, got %v", got)
	}
}

func TestRunOnceHonoursEnabledJobs(t *testing.T) {
	useTestRegistry(t)

	reminders := &fakeReminders{}
	s := newTestScheduler(t, reminders, nil, Config{EnabledJobs: []string{" DEBT_REMINDERS "}})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if reminders.lowCreditCalls != 0 {
		t.Fatalf("low credit job should be disabled")
	}
	if reminders.debtCalls != 1 {
		t.Fatalf("expected debt job to run once, got %d", reminders.debtCalls)
	}
}

func TestRunOnceKeepsGoingAfterJobError(t *testing.T) {
	useTestRegistry(t)

	reminders := &fakeReminders{lowCreditErr: errors.New("tokens unavailable")}
	s := newTestScheduler(t, reminders, nil, Config{})

	err := s.RunOnce(context.Background())
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if !strings.Contains(err.Error(), reminderdomain.JobLowCredit) {
		t.Fatalf("expected job name in error, got %v", err)
	}
	if reminders.debtCalls != 1 {
		t.Fatalf("debt job should still run, got %d calls", reminders.debtCalls)
	}
}

func TestRunOnceDefersJobWhenLockHeld(t *testing.T) {
	registry := useTestRegistry(t)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	if err := mr.Set(jobLockKey(reminderdomain.JobLowCredit), "other-replica"); err != nil {
		t.Fatalf("seed lock: %v", err)
	}

	reminders := &fakeReminders{}
	s := newTestScheduler(t, reminders, ratelimit.NewLocker(client), Config{})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if reminders.lowCreditCalls != 0 {
		t.Fatalf("locked job must not run")
	}
	if reminders.debtCalls != 1 {
		t.Fatalf("unlocked job should run, got %d", reminders.debtCalls)
	}
	if mr.Exists(jobLockKey(reminderdomain.JobDebtReminders)) {
		t.Fatalf("debt job lock should be released")
	}
	if got, _ := mr.Get(jobLockKey(reminderdomain.JobLowCredit)); got != "other-replica" {
		t.Fatalf("foreign lock must be left alone, got %q", got)
	}

	deferred := map[string]string{
		"service": "kilekitabu",
		"env":     "test",
		"job":     reminderdomain.JobLowCredit,
		"reason":  obsmetrics.SchedulerBatchDeferredReasonLockHeld,
	}
	if got := getCounterValue(t, registry, "kilekitabu_scheduler_batch_deferred_total", deferred); got != 1 {
		t.Fatalf("expected 1 deferred run, got %v", got)
	}
}

func TestWithDefaultsKeepsLockAboveTimeout(t *testing.T) {
	cfg := Config{JobTimeout: time.Hour, LockTTL: time.Minute}.withDefaults()
	if cfg.LockTTL != time.Hour {
		t.Fatalf("expected lock ttl raised to job timeout, got %v", cfg.LockTTL)
	}
	if cfg.RunInterval != time.Hour {
		t.Fatalf("expected default run interval, got %v", cfg.RunInterval)
	}
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}

func TestRunJobFinishLineCarriesSummary(t *testing.T) {
	useTestRegistry(t)

	core, logs := observer.New(zapcore.InfoLevel)
	reminders := &fakeReminders{
		lowCredit: reminderdomain.Summary{Job: reminderdomain.JobLowCredit, UsersScanned: 5, NotificationsSent: 3, Failures: 1},
	}
	s := newTestScheduler(t, reminders, nil, Config{})
	s.log = zap.New(core)

	if err := s.runJob(context.Background(), reminderdomain.JobLowCredit, time.Second, s.LowCreditJob); err != nil {
		t.Fatalf("run job: %v", err)
	}

	finish := logs.FilterMessage("scheduler.job.finish").All()
	if len(finish) != 1 {
		t.Fatalf("expected one finish line, got %d", len(finish))
	}
	if finish[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level with failures, got %s", finish[0].Level)
	}
	fields := finish[0].ContextMap()
	if fields["users_scanned"] != int64(5) || fields["notifications_sent"] != int64(3) || fields["failures"] != int64(1) {
		t.Fatalf("unexpected finish fields: %v", fields)
	}
	if fields["actor_type"] != "system" {
		t.Fatalf("expected scheduler actor, got %v", fields["actor_type"])
	}
	if logs.FilterMessage("scheduler.job.start").Len() != 1 {
		t.Fatalf("expected a start line")
	}
}
