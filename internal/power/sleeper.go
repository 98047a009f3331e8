// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package power schedules the timer wake-up and puts the device to sleep.
package power

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNoWakeScheduled = errors.New("no wake-up scheduled")
	ErrInvalidInterval = errors.New("wake-up interval must be positive")
)

// Sleeper arms a timer wake source and enters the low-power state. EnterDeepSleep
// consumes the scheduled wake-up and returns once the device is running again.
type Sleeper interface {
	ScheduleTimerWake(d time.Duration) error
	EnterDeepSleep(ctx context.Context) error
}
