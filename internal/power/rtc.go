// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package power

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/wneessen/epaper-weather/internal/logger"
)

const (
	// DefaultWakeAlarm is the sysfs wake alarm of the first RTC.
	DefaultWakeAlarm = "/sys/class/rtc/rtc0/wakealarm"

	// ResumeGrace is how long past the scheduled wake-up EnterDeepSleep waits for the
	// resume notification.
	ResumeGrace = time.Minute

	login1Dest       = "org.freedesktop.login1"
	login1Path       = "/org/freedesktop/login1"
	login1Manager    = "org.freedesktop.login1.Manager"
	login1Suspend    = login1Manager + ".Suspend"
	prepareForSleep  = "PrepareForSleep"
	signalBufferSize = 8
)

var (
	ErrNoResume      = errors.New("system did not resume in time")
	ErrBusDisconnect = errors.New("system bus connection closed")
)

// RTCSleeper arms the real-time clock wake alarm and suspends the system through logind.
type RTCSleeper struct {
	logger    *logger.Logger
	wakeAlarm string
	now       func() time.Time
	suspend   func(ctx context.Context) error

	mu     sync.Mutex
	wakeAt time.Time
}

// NewRTCSleeper returns a sleeper that writes to the given sysfs wake alarm file. An
// empty path selects DefaultWakeAlarm.
func NewRTCSleeper(log *logger.Logger, wakeAlarm string) *RTCSleeper {
	if wakeAlarm == "" {
		wakeAlarm = DefaultWakeAlarm
	}
	sleeper := &RTCSleeper{
		logger:    log,
		wakeAlarm: wakeAlarm,
		now:       time.Now,
	}
	sleeper.suspend = sleeper.logindSuspend
	return sleeper
}

// ScheduleTimerWake sets the RTC alarm to now+d. A pending alarm is cleared first since
// the kernel refuses to overwrite an armed alarm.
func (s *RTCSleeper) ScheduleTimerWake(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, d)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	wakeAt := s.now().Add(d).Truncate(time.Second)
	if err := os.WriteFile(s.wakeAlarm, []byte("0"), 0o644); err != nil {
		return fmt.Errorf("failed to clear wake alarm: %w", err)
	}
	if err := os.WriteFile(s.wakeAlarm, []byte(strconv.FormatInt(wakeAt.Unix(), 10)), 0o644); err != nil {
		return fmt.Errorf("failed to set wake alarm: %w", err)
	}
	s.wakeAt = wakeAt
	s.logger.Info("timer wake-up scheduled", slog.Time("wake_at", wakeAt), slog.Duration("interval", d))
	return nil
}

// EnterDeepSleep suspends the system and blocks until it resumed. It fails with
// ErrNoResume if no resume was observed within ResumeGrace of the wake-up time.
func (s *RTCSleeper) EnterDeepSleep(ctx context.Context) error {
	s.mu.Lock()
	wakeAt := s.wakeAt
	s.wakeAt = time.Time{}
	s.mu.Unlock()
	if wakeAt.IsZero() {
		return ErrNoWakeScheduled
	}

	ctxSleep, cancel := context.WithDeadline(ctx, wakeAt.Add(ResumeGrace))
	defer cancel()

	s.logger.Info("entering deep sleep", slog.Time("wake_at", wakeAt))
	if err := s.suspend(ctxSleep); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: %w", ErrNoResume, err)
		}
		return fmt.Errorf("failed to suspend: %w", err)
	}
	s.logger.Info("resumed from deep sleep")
	return nil
}

// logindSuspend asks logind to suspend the system and waits for the PrepareForSleep
// signal that announces the resume.
func (s *RTCSleeper) logindSuspend(ctx context.Context) error {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			s.logger.Error("failed to close system bus connection", logger.Err(err))
		}
	}()

	if err = conn.AddMatchSignalContext(ctx, dbus.WithMatchInterface(login1Manager),
		dbus.WithMatchMember(prepareForSleep),
	); err != nil {
		return fmt.Errorf("failed to subscribe to dbus signal: %w", err)
	}
	sigCh := make(chan *dbus.Signal, signalBufferSize)
	conn.Signal(sigCh)
	defer conn.RemoveSignal(sigCh)
	s.logger.Debug("subscribed to dbus signal", slog.String("interface", login1Manager),
		slog.String("member", prepareForSleep))

	// interactive=false, we are not allowed to ask for authorization
	if err = conn.Object(login1Dest, login1Path).CallWithContext(ctx, login1Suspend, 0, false).Err; err != nil {
		return fmt.Errorf("failed to request suspend: %w", err)
	}
	return waitForResume(ctx, sigCh)
}

func waitForResume(ctx context.Context, sigCh <-chan *dbus.Signal) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sgn, ok := <-sigCh:
			if !ok {
				return ErrBusDisconnect
			}
			if isResumeSignal(sgn) {
				return nil
			}
		}
	}
}

// isResumeSignal reports whether sgn is a PrepareForSleep(false) signal, which logind
// emits once the system is running again.
func isResumeSignal(sgn *dbus.Signal) bool {
	if sgn == nil || sgn.Name != login1Manager+"."+prepareForSleep || len(sgn.Body) != 1 {
		return false
	}
	sleeping, ok := sgn.Body[0].(bool)
	return ok && !sleeping
}
