package scheduler

import (
	"context"
	"time"

	obscontext "github.com/smallbiznis/kilekitabu/internal/observability/context"
	obslogger "github.com/smallbiznis/kilekitabu/internal/observability/logger"
	reminderdomain "github.com/smallbiznis/kilekitabu/internal/reminder/domain"
	"go.uber.org/zap"
)

// jobRun accumulates what one reminder pass did so the finish line can
// report it in a single entry.
type jobRun struct {
	job       string
	runID     string
	startedAt time.Time

	usersScanned int
	sent         int
	failures     int
}

type jobRunKey struct{}

func (r *jobRun) record(summary reminderdomain.Summary) {
	if r == nil {
		return
	}
	r.usersScanned += summary.UsersScanned
	r.sent += summary.NotificationsSent
	r.failures += summary.Failures
}

func (r *jobRun) fields() []zap.Field {
	return []zap.Field{
		zap.String("job", r.job),
		zap.String("run_id", r.runID),
	}
}

// beginRun attaches a run to ctx unless an outer call already did; owner
// reports whether this call should log the start and finish lines.
func (s *Scheduler) beginRun(ctx context.Context, job string) (_ context.Context, run *jobRun, owner bool) {
	if run = jobRunFromContext(ctx); run != nil {
		return ctx, run, false
	}
	run = &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		startedAt: s.clock.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	s.logger(ctx).Info("scheduler.job.start", run.fields()...)
	return ctx, run, true
}

func (s *Scheduler) finishRun(ctx context.Context, run *jobRun, err error) {
	fields := append(run.fields(),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
		zap.Int("users_scanned", run.usersScanned),
		zap.Int("notifications_sent", run.sent),
		zap.Int("failures", run.failures),
	)
	if err != nil || run.failures > 0 {
		s.logger(ctx).Warn("scheduler.job.finish", fields...)
		return
	}
	s.logger(ctx).Info("scheduler.job.finish", fields...)
}

func jobRunFromContext(ctx context.Context) *jobRun {
	run, _ := ctx.Value(jobRunKey{}).(*jobRun)
	return run
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}
