package scheduler

import (
	"context"
	"errors"

	obsmetrics "github.com/smallbiznis/kilekitabu/internal/observability/metrics"
	"github.com/smallbiznis/kilekitabu/internal/ratelimit"
	"go.uber.org/zap"
)

const lockKeyPrefix = "kilekitabu:scheduler:lock:"

func jobLockKey(job string) string {
	return lockKeyPrefix + job
}

// withJobLock runs fn while holding the job's redis lock. Without redis every
// replica runs the job. A held lock defers the job to the next tick.
func (s *Scheduler) withJobLock(ctx context.Context, job string, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}

	key := jobLockKey(job)
	lease, err := s.locker.Acquire(ctx, key, s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, ratelimit.ErrLockNotConfigured) {
			return fn(ctx)
		}
		// redis down should not stop reminders
		s.log.Warn("scheduler lock unavailable, running unlocked",
			zap.String("job", job),
			zap.Error(err),
		)
		return fn(ctx)
	}
	if lease == nil {
		holder, _ := s.locker.Holder(ctx, key)
		obsmetrics.Scheduler().IncBatchDeferred(job, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
		s.log.Info("scheduler.job.deferred",
			zap.String("job", job),
			zap.String("reason", obsmetrics.SchedulerBatchDeferredReasonLockHeld),
			zap.String("holder", holder),
		)
		return nil
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), lease); err != nil {
			s.log.Warn("scheduler lock release failed", zap.String("job", job), zap.Error(err))
		}
	}()

	return fn(ctx)
}
