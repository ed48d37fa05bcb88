// Package workers implements the three periodic maintenance jobs spec §4.H
// calls for (capacity reporter, expired-tenant sweeper, usage reconciler)
// plus a scheduler that drives them on tickers when running inside
// `photosyncd serve`. Grounded on the teacher's pkg/cache/flusher
// background-goroutine pattern (context-cancellable ticker loop with a
// WaitGroup-backed graceful Stop).
package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/photosync/backend/internal/logger"
	"github.com/photosync/backend/internal/metrics"
)

const (
	// CapacityInterval is how often the capacity reporter runs (spec §4.H).
	CapacityInterval = 2 * time.Minute
	// SweepInterval is how often the expired-tenant sweeper runs.
	SweepInterval = 30 * time.Minute
	// ReconcileInterval is how often the usage reconciler runs.
	ReconcileInterval = 15 * time.Minute
)

// Job is a single named, oneshot-runnable maintenance task.
type Job interface {
	Run() error
}

// ctxJob adapts a context-taking Run method (the sweeper's) to Job.
type ctxJob struct {
	run func(ctx context.Context) error
}

func (j ctxJob) Run() error { return j.run(context.Background()) }

// Scheduler runs the capacity reporter, sweeper, and reconciler each on
// their own ticker. It is also usable for a single oneshot invocation of
// any one job, for `photosyncd worker <name>` callers who prefer an
// external timer (systemd, cron) instead.
type Scheduler struct {
	capacity   *CapacityReporter
	sweeper    *Sweeper
	reconciler *Reconciler

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewScheduler builds a Scheduler over the three configured workers.
func NewScheduler(capacity *CapacityReporter, sweeper *Sweeper, reconciler *Reconciler) *Scheduler {
	return &Scheduler{capacity: capacity, sweeper: sweeper, reconciler: reconciler}
}

// Start launches one ticker goroutine per worker. It returns immediately;
// call Stop to shut them down.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.runOn(ctx, "capacity", CapacityInterval, s.capacity)
	s.runOn(ctx, "sweeper", SweepInterval, ctxJob{run: func(ctx context.Context) error { return s.sweeper.Run(ctx) }})
	s.runOn(ctx, "reconciler", ReconcileInterval, s.reconciler)
}

// Stop cancels every worker's ticker loop and blocks until each exits.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) runOn(ctx context.Context, name string, interval time.Duration, job Job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = RunInstrumented(name, job)
			}
		}
	}()
}

// RunOnce runs the named worker a single time, for `photosyncd worker
// <name>` callers who prefer an external timer (systemd, cron) over the
// ticker-driven Start loop. Metrics and logging go through the same
// RunInstrumented path the ticker loop uses.
func (s *Scheduler) RunOnce(name string) error {
	switch name {
	case "capacity":
		return RunInstrumented(name, s.capacity)
	case "sweeper":
		return RunInstrumented(name, ctxJob{run: func(ctx context.Context) error { return s.sweeper.Run(ctx) }})
	case "reconciler":
		return RunInstrumented(name, s.reconciler)
	default:
		return fmt.Errorf("unknown worker %q", name)
	}
}

// RunInstrumented runs job once, recording its outcome and duration to
// Prometheus and logging failures, and returns the job's own error. Used
// by both the ticker loop and the `photosyncd worker` oneshot subcommands
// so both paths get identical observability.
func RunInstrumented(name string, job Job) error {
	start := time.Now()
	err := job.Run()
	duration := time.Since(start).Seconds()

	metrics.WorkerDurationSeconds.WithLabelValues(name).Observe(duration)

	outcome := "success"
	if err != nil {
		outcome = "error"
		logger.Error("Worker run failed", "worker", name, "error", err)
	} else {
		logger.Debug("Worker run completed", "worker", name, "durationSeconds", duration)
	}
	metrics.WorkerRunsTotal.WithLabelValues(name, outcome).Inc()
	return err
}
