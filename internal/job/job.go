// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package job runs periodic tasks that never overlap with themselves.
package job

import (
	"context"
	"time"
)

// Job is a task that runs at a fixed interval in singleton mode.
type Job struct {
	interval  time.Duration
	task      func(context.Context)
	immediate bool
}

// Option configures a Job.
type Option func(*Job)

// WithImmediateRun runs the task once right when the job is started instead of waiting
// for the first tick.
func WithImmediateRun() Option {
	return func(j *Job) {
		j.immediate = true
	}
}

// New creates a new Job with the given interval and task.
func New(interval time.Duration, task func(context.Context), opts ...Option) *Job {
	job := &Job{
		interval: interval,
		task:     task,
	}
	for _, opt := range opts {
		opt(job)
	}
	return job
}

// Start executes the job until ctx is cancelled. If a tick fires while a previous run is
// still executing, that tick is skipped. Start returns once ctx is done; a run that is
// still in progress at that point sees its context cancelled.
func (j *Job) Start(ctx context.Context) {
	if j.task == nil || j.interval <= 0 {
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// 1-slot semaphore, full while a run is in progress
	sem := make(chan struct{}, 1)
	run := func() {
		select {
		case sem <- struct{}{}:
			go func() {
				defer func() { <-sem }()
				runCtx, cancel := context.WithCancel(ctx)
				defer cancel()
				j.task(runCtx)
			}()
		default:
		}
	}

	if j.immediate {
		run()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
