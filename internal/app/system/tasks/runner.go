// internal/app/system/tasks/runner.go
package tasks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	jobstatsstore "github.com/dalemusser/stratadrive/internal/app/store/jobstats"
	"go.uber.org/zap"
)

// Job is a named task run on a fixed interval.
type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run. Zero means the run is only bounded by
	// the runner's lifetime.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// StatsRecorder records per-day job counters. *jobstatsstore.Store
// implements it.
type StatsRecorder interface {
	Increment(ctx context.Context, at time.Time, job, counter string, delta int64) error
}

// statsTimeout bounds a single counter write.
const statsTimeout = 5 * time.Second

// Runner executes registered jobs in the background until stopped.
type Runner struct {
	logger  *zap.Logger
	stats   StatsRecorder
	jobs    []Job
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	running atomic.Int32 // runs in progress
	active  sync.Map     // job name -> struct{} while running
}

// New creates a new task runner.
func New(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger}
}

// SetStats makes the runner count every scheduled run and failure. Call it
// before Start.
func (r *Runner) SetStats(stats StatsRecorder) {
	r.stats = stats
}

// Register adds a job. Jobs must be registered before Start.
func (r *Runner) Register(job Job) {
	r.jobs = append(r.jobs, job)
}

// Names returns the registered job names in registration order.
func (r *Runner) Names() []string {
	names := make([]string, len(r.jobs))
	for i, j := range r.jobs {
		names[i] = j.Name
	}
	return names
}

// Start runs every job once right away and then on its interval.
// Call Stop to shut down.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	for _, job := range r.jobs {
		r.wg.Add(1)
		go r.loop(ctx, job)
	}

	r.logger.Info("background task runner started",
		zap.Strings("jobs", r.Names()))
}

// Stop cancels all jobs and waits for in-flight runs until ctx is done.
// It returns ctx.Err() if some run did not finish in time.
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("background task runner stopped")
		return nil
	case <-ctx.Done():
		var stuck []string
		r.active.Range(func(key, _ any) bool {
			stuck = append(stuck, key.(string))
			return true
		})
		r.logger.Warn("background task runner shutdown timed out",
			zap.Strings("jobs_still_running", stuck),
			zap.Int32("running_count", r.running.Load()))
		return ctx.Err()
	}
}

func (r *Runner) loop(ctx context.Context, job Job) {
	defer r.wg.Done()

	r.execute(ctx, job)

	interval := job.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("job stopped", zap.String("job", job.Name))
			return
		case <-ticker.C:
			r.execute(ctx, job)
		}
	}
}

// execute performs one run and logs its outcome. Errors never stop the loop.
func (r *Runner) execute(ctx context.Context, job Job) {
	r.running.Add(1)
	r.active.Store(job.Name, struct{}{})
	defer func() {
		r.running.Add(-1)
		r.active.Delete(job.Name)
	}()

	start := time.Now()
	err := r.run(ctx, job)
	switch {
	case err == nil:
		r.logger.Debug("job completed",
			zap.String("job", job.Name),
			zap.Duration("duration", time.Since(start)))
	case ctx.Err() != nil:
		r.logger.Debug("job cancelled during shutdown",
			zap.String("job", job.Name),
			zap.Duration("duration", time.Since(start)))
		return
	default:
		r.logger.Error("job failed",
			zap.String("job", job.Name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
	}
	r.record(start, job.Name, err != nil)
}

// record counts one finished run. Counter writes never fail the job.
func (r *Runner) record(at time.Time, name string, failed bool) {
	if r.stats == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()

	counters := []string{name + jobstatsstore.SuffixRuns}
	if failed {
		counters = append(counters, name+jobstatsstore.SuffixFailures)
	}
	for _, c := range counters {
		if err := r.stats.Increment(ctx, at, name, c, 1); err != nil {
			r.logger.Warn("job stats write failed",
				zap.String("job", name),
				zap.String("counter", c),
				zap.Error(err))
		}
	}
}

func (r *Runner) run(ctx context.Context, job Job) error {
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}
	return job.Run(ctx)
}
