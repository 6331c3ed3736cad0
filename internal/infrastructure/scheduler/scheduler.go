// Package scheduler runs recurring background jobs: flap buffer flushes,
// stale session sweeps and retention pruning.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/streamhub/stream-community-hub/pkg/clock"
)

// Job is a unit of recurring background work.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Run executes one iteration.
	Run(ctx context.Context) error
}

// Schedule decides when a job runs next.
type Schedule interface {
	// Next returns the first run time after the given instant.
	Next(after time.Time) time.Time
}

type registration struct {
	job      Job
	schedule Schedule
}

// Scheduler drives registered jobs on their schedules, one goroutine per
// job so a slow job cannot starve the others.
type Scheduler struct {
	mu     sync.Mutex
	jobs   []registration
	logger *slog.Logger
	clock  clock.Clock

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New creates a Scheduler.
func New(logger *slog.Logger, clk clock.Clock) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Scheduler{logger: logger, clock: clk}
}

// Register adds a job. Must be called before Start.
func (s *Scheduler) Register(job Job, schedule Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, registration{job: job, schedule: schedule})
}

// Start launches every registered job. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, reg := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(runCtx, reg)
	}
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop cancels all jobs and waits for them to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runLoop(ctx context.Context, reg registration) {
	defer s.wg.Done()

	for {
		next := reg.schedule.Next(s.clock.Now())
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.runJob(ctx, reg.job)
	}
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "job", job.Name(), "panic", r)
		}
	}()

	start := s.clock.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("job failed",
			"job", job.Name(),
			"duration", s.clock.Now().Sub(start).String(),
			"error", err)
		return
	}
	s.logger.Debug("job completed",
		"job", job.Name(),
		"duration", s.clock.Now().Sub(start).String())
}
