package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kilekitabu/internal/clock"
	obsmetrics "github.com/smallbiznis/kilekitabu/internal/observability/metrics"
	"github.com/smallbiznis/kilekitabu/internal/ratelimit"
	reminderdomain "github.com/smallbiznis/kilekitabu/internal/reminder/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log       *zap.Logger
	Reminders reminderdomain.Service
	Locker    *ratelimit.Locker `optional:"true"`
	GenID     *snowflake.Node
	Clock     clock.Clock
	Config    Config `optional:"true"`
}

type Scheduler struct {
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	clock     clock.Clock
	reminders reminderdomain.Service
	locker    *ratelimit.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Reminders == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		genID:     p.GenID,
		clock:     p.Clock,
		reminders: p.Reminders,
		locker:    p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.beginRun(ctx, name)
	log := s.logger(ctx).With(run.fields()...)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		s.finishRun(ctx, run, err)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout: the next tick picks the scan up again
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	log.Error("job failed",
		zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
		zap.Error(err),
	)
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled reminder job once, in order.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{reminderdomain.JobLowCredit, s.LowCreditJob},
		{reminderdomain.JobDebtReminders, s.DebtRemindersJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		job := job
		err = errors.Join(err, s.withJobLock(parent, job.Name, func(ctx context.Context) error {
			return s.runJob(ctx, job.Name, s.cfg.JobTimeout, job.Run)
		}))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now()
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// empty list enables every job
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}

func (s *Scheduler) LowCreditJob(ctx context.Context) error {
	summary, err := s.reminders.ScanLowCredit(ctx)
	s.recordSummary(ctx, summary)
	return err
}

func (s *Scheduler) DebtRemindersJob(ctx context.Context) error {
	summary, err := s.reminders.ScanDebtReminders(ctx)
	s.recordSummary(ctx, summary)
	return err
}

func (s *Scheduler) recordSummary(ctx context.Context, summary reminderdomain.Summary) {
	jobRunFromContext(ctx).record(summary)

	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.AddBatchProcessed(summary.Job, obsmetrics.ResourceUsers, summary.UsersScanned)
	schedMetrics.AddBatchProcessed(summary.Job, obsmetrics.ResourceNotifications, summary.NotificationsSent)
}
