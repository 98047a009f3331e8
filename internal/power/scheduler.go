// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package power

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/wneessen/epaper-weather/internal/logger"
)

const wakeJobName = "timer_wake_job"

// SchedulerSleeper idles the process until a one-time job fires. It is used on hosts
// that can't suspend, the process keeps running while it "sleeps".
type SchedulerSleeper struct {
	logger *logger.Logger
	clock  clockwork.Clock

	mu        sync.Mutex
	scheduler gocron.Scheduler
	fired     chan struct{}
	wakeAt    time.Time
}

// NewSchedulerSleeper returns a sleeper driven by clock. A nil clock selects the real
// clock.
func NewSchedulerSleeper(log *logger.Logger, clock clockwork.Clock) *SchedulerSleeper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SchedulerSleeper{
		logger: log,
		clock:  clock,
	}
}

// ScheduleTimerWake creates a one-time job that fires at now+d. A previously scheduled
// wake-up is replaced.
func (s *SchedulerSleeper) ScheduleTimerWake(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, d)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown()

	scheduler, err := gocron.NewScheduler(gocron.WithClock(s.clock))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	fired := make(chan struct{})
	var once sync.Once
	wakeAt := s.clock.Now().Add(d)
	_, err = scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(wakeAt)),
		gocron.NewTask(func() {
			once.Do(func() { close(fired) })
		}),
		gocron.WithName(wakeJobName),
	)
	if err != nil {
		if serr := scheduler.Shutdown(); serr != nil {
			s.logger.Error("failed to shut down scheduler", logger.Err(serr))
		}
		return fmt.Errorf("failed to create %s: %w", wakeJobName, err)
	}
	scheduler.Start()

	s.scheduler = scheduler
	s.fired = fired
	s.wakeAt = wakeAt
	s.logger.Info("timer wake-up scheduled", slog.Time("wake_at", wakeAt), slog.Duration("interval", d))
	return nil
}

// EnterDeepSleep blocks until the scheduled job fired or ctx is done.
func (s *SchedulerSleeper) EnterDeepSleep(ctx context.Context) error {
	s.mu.Lock()
	fired, wakeAt := s.fired, s.wakeAt
	s.mu.Unlock()
	if fired == nil {
		return ErrNoWakeScheduled
	}
	defer func() {
		s.mu.Lock()
		s.shutdown()
		s.mu.Unlock()
	}()

	s.logger.Info("entering deep sleep", slog.Time("wake_at", wakeAt))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-fired:
		s.logger.Info("resumed from deep sleep")
		return nil
	}
}

// shutdown stops the current scheduler. The caller must hold s.mu.
func (s *SchedulerSleeper) shutdown() {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.Shutdown(); err != nil {
		s.logger.Error("failed to shut down scheduler", logger.Err(err))
	}
	s.scheduler = nil
	s.fired = nil
	s.wakeAt = time.Time{}
}
