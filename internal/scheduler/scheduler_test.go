package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRegister_Validation(t *testing.T) {
	s := NewScheduler()

	err := s.Register(&Task{Name: "no id", Handler: func(context.Context) error { return nil }})
	if err == nil {
		t.Error("task without an ID should be rejected")
	}

	err = s.Register(&Task{ID: "no-handler", Name: "no handler"})
	if err == nil {
		t.Error("task without a handler should be rejected")
	}
}

func TestRegister_SetsDefaults(t *testing.T) {
	s := NewScheduler()

	task := IntervalTask("t1", "interval task", time.Hour, func(context.Context) error { return nil })
	if err := s.Register(task); err != nil {
		t.Fatalf("Register() err = %v", err)
	}

	got, ok := s.GetTask("t1")
	if !ok {
		t.Fatal("registered task not found")
	}
	if got.Timeout == 0 {
		t.Error("registration should apply a default timeout")
	}
	if got.NextRun == nil {
		t.Error("registration should compute the next run")
	}
	if !got.Enabled {
		t.Error("registered tasks start enabled")
	}
}

func TestIntervalTaskRuns(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int64

	task := IntervalTask("tick", "tick", 20*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	if err := s.Register(task); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("task ran %d times, want at least 2", runs.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRunNow(t *testing.T) {
	s := NewScheduler()
	done := make(chan struct{})

	task := IntervalTask("manual", "manual", time.Hour, func(context.Context) error {
		close(done)
		return nil
	})
	if err := s.Register(task); err != nil {
		t.Fatal(err)
	}

	if err := s.RunNow("manual"); err != nil {
		t.Fatalf("RunNow() err = %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunNow never executed the handler")
	}

	if err := s.RunNow("missing"); err == nil {
		t.Error("RunNow on an unknown task should error")
	}
}

func TestErrorTracking(t *testing.T) {
	s := NewScheduler()
	done := make(chan struct{})

	task := IntervalTask("flaky", "flaky", time.Hour, func(context.Context) error {
		defer close(done)
		return errors.New("boom")
	})
	if err := s.Register(task); err != nil {
		t.Fatal(err)
	}
	if err := s.RunNow("flaky"); err != nil {
		t.Fatal(err)
	}
	<-done

	// The executor updates counters after the handler returns.
	deadline := time.After(2 * time.Second)
	for {
		got, _ := s.GetTask("flaky")
		if got.ErrorCount >= 1 {
			if got.LastError != "boom" {
				t.Errorf("last error = %q, want boom", got.LastError)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("error count never recorded")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStartStop(t *testing.T) {
	s := NewScheduler()

	task := IntervalTask("t1", "t1", time.Hour, func(context.Context) error { return nil })
	if err := s.Register(task); err != nil {
		t.Fatal(err)
	}

	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err == nil {
		t.Error("double start should error")
	}

	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	// Stop is idempotent and the scheduler can restart.
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Errorf("restart after stop err = %v", err)
	}
	s.Stop()
}

func TestStopReturnsWhileHandlerInFlight(t *testing.T) {
	s := NewScheduler()
	running := make(chan struct{}, 1)

	// The handler holds its run open until cancellation, so Stop is called
	// while executeTask still needs the scheduler mutex to record the
	// outcome.
	task := IntervalTask("busy", "busy", 10*time.Millisecond, func(ctx context.Context) error {
		select {
		case running <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	})
	if err := s.Register(task); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	select {
	case <-running:
	case <-time.After(2 * time.Second):
		t.Fatal("task never started running")
	}

	done := make(chan error, 1)
	go func() { done <- s.Stop() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Stop() err = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return while a handler was mid-run")
	}

	got, _ := s.GetTask("busy")
	if got.RunCount < 1 {
		t.Error("in-flight run was never recorded")
	}
}

func TestUnregister(t *testing.T) {
	s := NewScheduler()

	task := IntervalTask("t1", "t1", time.Hour, func(context.Context) error { return nil })
	if err := s.Register(task); err != nil {
		t.Fatal(err)
	}
	if err := s.Unregister("t1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.GetTask("t1"); ok {
		t.Error("unregistered task still present")
	}
}

func TestGetStats(t *testing.T) {
	s := NewScheduler()

	for _, id := range []string{"a", "b"} {
		task := IntervalTask(id, id, time.Hour, func(context.Context) error { return nil })
		if err := s.Register(task); err != nil {
			t.Fatal(err)
		}
	}

	stats := s.GetStats()
	if stats.TotalTasks != 2 || stats.EnabledTasks != 2 {
		t.Errorf("stats = %+v, want 2 total and 2 enabled", stats)
	}
	if stats.Started {
		t.Error("stats should report not started")
	}
}
