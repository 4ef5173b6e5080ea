// Copyright 2025 Somno Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/somnolabs/oneiro/core"
	"github.com/somnolabs/oneiro/storage"
)

// Processor runs the processing sequence for one dream. A returned error
// wrapping core.ErrDreamSkipped marks the dream unprocessable and is not
// retried; any other error counts as a transient attempt failure.
type Processor interface {
	Process(ctx context.Context, dreamId core.ID) error
}

// Scheduler claims due jobs and runs them on a bounded pool.
type Scheduler struct {
	jobs      storage.JobStore
	dreams    storage.DreamStore
	processor Processor
	pool      *ants.Pool
	config    *Config
	observer  Observer
	logger    *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler) error

// WithObserver sets a lifecycle observer.
// Default is NoopObserver.
func WithObserver(observer Observer) Option {
	return func(s *Scheduler) error {
		if observer == nil {
			observer = NoopObserver{}
		}
		s.observer = observer
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewScheduler creates a scheduler. A nil config uses DefaultConfig.
func NewScheduler(
	jobs storage.JobStore,
	dreams storage.DreamStore,
	processor Processor,
	config *Config,
	opts ...Option,
) (*Scheduler, error) {
	if jobs == nil {
		return nil, ErrJobStoreRequired
	}
	if dreams == nil {
		return nil, ErrDreamStoreRequired
	}
	if processor == nil {
		return nil, ErrProcessorRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(config.MaxConcurrentJobs)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		jobs:      jobs,
		dreams:    dreams,
		processor: processor,
		pool:      pool,
		config:    config,
		observer:  NoopObserver{},
		logger:    slog.Default().With("component", "worker"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			pool.Release()
			return nil, err
		}
	}
	return s, nil
}

// Enqueue creates a pending job for a dream. MaxAttempts defaults to the
// scheduler's configured budget when unset.
func (s *Scheduler) Enqueue(ctx context.Context, dreamId core.ID, priority int) error {
	return s.jobs.EnqueueJob(ctx, &core.Job{
		DreamId:     dreamId,
		Status:      core.JobStatusPending,
		MaxAttempts: s.config.MaxJobAttempts,
		Priority:    priority,
		ScheduledAt: time.Now().UTC(),
	})
}

// Run polls for due jobs until the context is cancelled. It blocks; run it
// on its own goroutine when the caller has other work. The pool is released
// on return, after in-flight jobs finish.
func (s *Scheduler) Run(ctx context.Context) error {
	pollTicker := time.NewTicker(s.config.PollingInterval)
	defer pollTicker.Stop()
	cleanupTicker := time.NewTicker(s.config.CleanupInterval)
	defer cleanupTicker.Stop()

	s.logger.Info("scheduler started",
		"concurrency", s.config.MaxConcurrentJobs,
		"pollingInterval", s.config.PollingInterval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			s.Release()
			return ctx.Err()
		case <-pollTicker.C:
			if err := s.pollOnce(ctx); err != nil {
				s.logger.Error("error claiming jobs", "err", err)
			}
		case <-cleanupTicker.C:
			if err := s.sweepOnce(ctx); err != nil {
				s.logger.Error("error sweeping stale jobs", "err", err)
			}
		}
	}
}

// Release shuts down the worker pool, waiting for running jobs.
// The scheduler should not be used after calling Release.
func (s *Scheduler) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}

// pollOnce claims up to the pool's free capacity and submits each claimed
// job for processing.
func (s *Scheduler) pollOnce(ctx context.Context) error {
	free := s.pool.Free()
	if free < 1 {
		return nil
	}

	claimed, err := s.jobs.ClaimPending(ctx, time.Now().UTC(), free)
	if err != nil {
		return err
	}

	// A claimed job runs to completion even during shutdown; the stale
	// sweep is the only mechanism that takes a claim back.
	jobCtx := context.WithoutCancel(ctx)

	for _, job := range claimed {
		job := job
		if err := s.pool.Submit(func() {
			s.runJob(jobCtx, job)
		}); err != nil {
			// Pool rejected the submission; put the job back so another
			// poll picks it up.
			s.logger.Warn("pool rejected job, requeueing", "dreamId", job.DreamId, "err", err)
			job.Status = core.JobStatusPending
			job.StartedAt = time.Time{}
			if requeueErr := s.jobs.UpdateJob(ctx, job); requeueErr != nil {
				s.logger.Error("error requeueing job", "dreamId", job.DreamId, "err", requeueErr)
			}
		}
	}
	return nil
}

// sweepOnce resets jobs stuck in processing longer than StaleJobTimeout.
func (s *Scheduler) sweepOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.config.StaleJobTimeout)
	reset, err := s.jobs.ResetStale(ctx, cutoff)
	if err != nil {
		return err
	}
	if reset > 0 {
		s.logger.Warn("reset stale jobs", "count", reset)
	}
	return nil
}

// runJob processes one claimed job and records the outcome. The dream
// mirrors the claim immediately so status readers can tell an in-flight
// dream from a queued one.
func (s *Scheduler) runJob(ctx context.Context, job *core.Job) {
	if err := s.dreams.SetDreamStatus(ctx, job.DreamId, core.DreamStatusProcessing, job.LastError); err != nil {
		s.logger.Error("error updating dream status", "dreamId", job.DreamId, "err", err)
	}

	err := s.processor.Process(ctx, job.DreamId)

	switch {
	case err == nil:
		s.finishJob(ctx, job, core.DreamStatusCompleted, "")
		s.observer.JobCompleted(job)

	case errors.Is(err, core.ErrDreamSkipped):
		// Unprocessable input. The job completes so it is never retried;
		// the dream records why it was skipped.
		s.finishJob(ctx, job, core.DreamStatusSkipped, err.Error())
		s.observer.DreamSkipped(job, err)

	default:
		s.failAttempt(ctx, job, err)
	}
}

// finishJob marks the job completed and transitions the dream.
func (s *Scheduler) finishJob(ctx context.Context, job *core.Job, dreamStatus core.DreamStatus, lastError string) {
	now := time.Now().UTC()
	job.Status = core.JobStatusCompleted
	job.CompletedAt = now
	job.LastError = lastError
	if err := s.jobs.UpdateJob(ctx, job); err != nil {
		s.logger.Error("error completing job", "dreamId", job.DreamId, "err", err)
	}

	if err := s.dreams.SetDreamStatus(ctx, job.DreamId, dreamStatus, lastError); err != nil {
		s.logger.Error("error updating dream status", "dreamId", job.DreamId, "err", err)
	}

	s.logger.Info("job finished",
		"dreamId", job.DreamId,
		"attempts", job.Attempts,
		"dreamStatus", dreamStatus)
}

// failAttempt reschedules a failed job with backoff, or dead-letters it
// when the attempt budget is spent.
func (s *Scheduler) failAttempt(ctx context.Context, job *core.Job, attemptErr error) {
	job.LastError = attemptErr.Error()

	maxAttempts := job.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = s.config.MaxJobAttempts
	}

	if job.Attempts >= maxAttempts {
		now := time.Now().UTC()
		job.Status = core.JobStatusFailed
		job.CompletedAt = now
		if err := s.jobs.UpdateJob(ctx, job); err != nil {
			s.logger.Error("error dead-lettering job", "dreamId", job.DreamId, "err", err)
		}
		if err := s.dreams.SetDreamStatus(ctx, job.DreamId, core.DreamStatusFailed, job.LastError); err != nil {
			s.logger.Error("error updating dream status", "dreamId", job.DreamId, "err", err)
		}
		s.logger.Error("job dead-lettered",
			"dreamId", job.DreamId,
			"attempts", job.Attempts,
			"err", attemptErr)
		s.observer.JobFailed(job, attemptErr, false)
		return
	}

	delay := backoffDelay(job.Attempts, s.config.BackoffBase, s.config.BackoffCap)
	job.Status = core.JobStatusPending
	job.ScheduledAt = time.Now().UTC().Add(delay)
	job.StartedAt = time.Time{}
	if err := s.jobs.UpdateJob(ctx, job); err != nil {
		s.logger.Error("error rescheduling job", "dreamId", job.DreamId, "err", err)
	}
	if err := s.dreams.SetDreamStatus(ctx, job.DreamId, core.DreamStatusPending, job.LastError); err != nil {
		s.logger.Error("error updating dream status", "dreamId", job.DreamId, "err", err)
	}

	s.logger.Warn("job attempt failed, rescheduled",
		"dreamId", job.DreamId,
		"attempts", job.Attempts,
		"retryIn", delay,
		"err", attemptErr)
	s.observer.JobFailed(job, attemptErr, true)
}
