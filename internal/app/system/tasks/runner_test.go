package tasks_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/stratadrive/internal/app/system/tasks"
	"go.uber.org/zap"
)

func TestRunner_StartAndStop(t *testing.T) {
	logger := zap.NewNop()
	runner := tasks.New(logger)

	var runCount atomic.Int32
	runner.Register(tasks.Job{
		Name:     "test-job",
		Interval: 100 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runCount.Add(1)
			return nil
		},
	})

	runner.Start()

	// Wait for at least one execution
	time.Sleep(50 * time.Millisecond)

	// Stop with generous timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := runner.Stop(ctx)
	if err != nil {
		t.Errorf("Stop() returned error: %v", err)
	}

	// Job should have run at least once (runs immediately on start)
	if runCount.Load() < 1 {
		t.Errorf("expected job to run at least once, ran %d times", runCount.Load())
	}
}

func TestRunner_StopWithTimeout(t *testing.T) {
	logger := zap.NewNop()
	runner := tasks.New(logger)

	inSleep := make(chan struct{})
	runner.Register(tasks.Job{
		Name:     "slow-job",
		Interval: 1 * time.Hour, // Won't repeat during test
		Run: func(ctx context.Context) error {
			// Signal that we're about to sleep
			close(inSleep)
			// Simulate a long-running job that IGNORES context (bad behavior)
			// This tests that Stop() times out properly
			time.Sleep(5 * time.Second)
			return nil
		},
	})

	runner.Start()

	// Wait for job to enter the sleep
	<-inSleep

	// Give the job a moment to be fully in the sleep
	time.Sleep(10 * time.Millisecond)

	// Stop with very short timeout - should fail because job ignores context
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := runner.Stop(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("expected DeadlineExceeded error, got: %v", err)
	}
}

func TestRunner_GracefulStop(t *testing.T) {
	logger := zap.NewNop()
	runner := tasks.New(logger)

	completed := make(chan struct{})
	runner.Register(tasks.Job{
		Name:     "quick-job",
		Interval: 1 * time.Hour,
		Run: func(ctx context.Context) error {
			// Quick job that completes before timeout
			time.Sleep(10 * time.Millisecond)
			close(completed)
			return nil
		},
	})

	runner.Start()

	// Wait for job to complete
	<-completed

	// Stop should succeed quickly
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	err := runner.Stop(ctx)
	if err != nil {
		t.Errorf("Stop() returned error: %v", err)
	}
}

func TestRunner_MultipleJobs(t *testing.T) {
	logger := zap.NewNop()
	runner := tasks.New(logger)

	var job1Count, job2Count atomic.Int32

	runner.Register(tasks.Job{
		Name:     "job-1",
		Interval: 50 * time.Millisecond,
		Run: func(ctx context.Context) error {
			job1Count.Add(1)
			return nil
		},
	})

	runner.Register(tasks.Job{
		Name:     "job-2",
		Interval: 50 * time.Millisecond,
		Run: func(ctx context.Context) error {
			job2Count.Add(1)
			return nil
		},
	})

	runner.Start()

	// Let jobs run a few times
	time.Sleep(150 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := runner.Stop(ctx)
	if err != nil {
		t.Errorf("Stop() returned error: %v", err)
	}

	// Both jobs should have run at least once
	if job1Count.Load() < 1 {
		t.Errorf("job-1 should have run at least once, ran %d times", job1Count.Load())
	}
	if job2Count.Load() < 1 {
		t.Errorf("job-2 should have run at least once, ran %d times", job2Count.Load())
	}
}

func TestRunner_RunTimeout(t *testing.T) {
	runner := tasks.New(zap.NewNop())
	result := make(chan error, 1)
	runner.Register(tasks.Job{
		Name:     "bounded",
		Interval: time.Hour,
		Timeout:  20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			select {
			case result <- ctx.Err():
			default:
			}
			return ctx.Err()
		},
	})

	runner.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = runner.Stop(ctx)
	}()

	select {
	case err := <-result:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("run ctx error = %v, want DeadlineExceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("bounded job never finished")
	}
}

func TestRunner_FailingJobKeepsRunning(t *testing.T) {
	runner := tasks.New(zap.NewNop())

	var calls atomic.Int32
	runner.Register(tasks.Job{
		Name:     "flaky",
		Interval: 20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			calls.Add(1)
			return errors.New("boom")
		},
	})

	runner.Start()
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := runner.Stop(ctx); err != nil {
		t.Errorf("Stop() returned error: %v", err)
	}
	if calls.Load() < 2 {
		t.Errorf("failing job ran %d times, want it retried on its interval", calls.Load())
	}
}

func TestRunner_Names(t *testing.T) {
	runner := tasks.New(nil)
	runner.Register(tasks.Job{Name: "a", Run: func(context.Context) error { return nil }})
	runner.Register(tasks.Job{Name: "b", Run: func(context.Context) error { return nil }})

	names := runner.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Names() = %v, want [a b]", names)
	}
}

func TestRunner_JobContextCancellation(t *testing.T) {
	logger := zap.NewNop()
	runner := tasks.New(logger)

	contextCancelled := make(chan struct{})
	runner.Register(tasks.Job{
		Name:     "context-aware-job",
		Interval: 1 * time.Hour,
		Run: func(ctx context.Context) error {
			// Wait for context cancellation
			<-ctx.Done()
			close(contextCancelled)
			return ctx.Err()
		},
	})

	runner.Start()

	// Give job time to start waiting
	time.Sleep(50 * time.Millisecond)

	// Stop the runner
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := runner.Stop(ctx)
	if err != nil {
		t.Errorf("Stop() returned error: %v", err)
	}

	// Verify context was cancelled
	select {
	case <-contextCancelled:
		// Expected
	case <-time.After(1 * time.Second):
		t.Error("job context was not cancelled")
	}
}

type memStats struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (m *memStats) Increment(ctx context.Context, at time.Time, job, counter string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int64)
	}
	m.counts[counter] += delta
	return nil
}

func (m *memStats) get(counter string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[counter]
}

func TestRunner_RecordsStats(t *testing.T) {
	runner := tasks.New(zap.NewNop())
	stats := &memStats{}
	runner.SetStats(stats)

	runner.Register(tasks.Job{
		Name:     "ok",
		Interval: time.Hour,
		Run:      func(ctx context.Context) error { return nil },
	})
	runner.Register(tasks.Job{
		Name:     "bad",
		Interval: time.Hour,
		Run:      func(ctx context.Context) error { return errors.New("boom") },
	})

	runner.Start()
	time.Sleep(100 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := runner.Stop(ctx); err != nil {
		t.Fatalf("Stop() returned error: %v", err)
	}

	tests := []struct {
		counter string
		want    int64
	}{
		{"ok.runs", 1},
		{"ok.failures", 0},
		{"bad.runs", 1},
		{"bad.failures", 1},
	}
	for _, tt := range tests {
		if got := stats.get(tt.counter); got != tt.want {
			t.Errorf("%s = %d, want %d", tt.counter, got, tt.want)
		}
	}
}
