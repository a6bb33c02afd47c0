package scheduler

import (
	"context"
	"time"

	"ludus/internal/logger"
)

// CycleScheduler drives a task at a fixed delay: the interval is slept
// after each completion, so a slow task stretches the period instead of
// stacking runs.
type CycleScheduler struct {
	Interval       time.Duration
	MaxCycles      int
	RunImmediately bool

	ctx   context.Context
	nowFn func() time.Time
}

func NewCycleScheduler(ctx context.Context, interval time.Duration) *CycleScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &CycleScheduler{
		Interval: interval,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

// Start runs task until it returns false, MaxCycles completions are
// reached, or the context finishes. A task in flight always completes;
// cancellation is only observed between runs.
func (s *CycleScheduler) Start(task func() bool) {
	if s == nil {
		return
	}
	if task == nil {
		logger.Warnf("CycleScheduler: task is nil, exit")
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("CycleScheduler: invalid interval=%s, exit", s.Interval)
		return
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	startAt := s.nowFn().UTC()
	logger.Infof("CycleScheduler: started interval=%s max_cycles=%d run_immediately=%v at=%s",
		s.Interval, s.MaxCycles, s.RunImmediately, startAt.Format(time.RFC3339))

	runs := 0
	if s.RunImmediately {
		if !task() {
			logger.Infof("CycleScheduler: task requested stop, exit")
			return
		}
		runs++
		if s.MaxCycles > 0 && runs >= s.MaxCycles {
			logger.Infof("CycleScheduler: max cycles reached (%d), exit", runs)
			return
		}
	}

	for {
		uptime := s.nowFn().UTC().Sub(startAt)
		logger.Debugf("CycleScheduler: sleeping %s before next run | runs=%d uptime=%s",
			s.Interval, runs, uptime.Truncate(time.Second))
		if !SleepWithContext(s.ctx, s.Interval) {
			logger.Infof("CycleScheduler: ctx done, exit")
			return
		}
		if !task() {
			logger.Infof("CycleScheduler: task requested stop, exit")
			return
		}
		runs++
		if s.MaxCycles > 0 && runs >= s.MaxCycles {
			logger.Infof("CycleScheduler: max cycles reached (%d), exit", runs)
			return
		}
	}
}

// SleepWithContext waits d unless ctx finishes first. Reports whether the
// full delay elapsed.
func SleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
