package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pushbot/pkg/logx"
)

// fakeClock hands out a fresh wall-clock minute on every read so each
// tick looks like a new scheduler minute.
type fakeClock struct {
	mu   sync.Mutex
	base time.Time
	step time.Duration
	n    int
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		base: time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC),
		step: time.Minute,
	}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.base.Add(time.Duration(c.n) * c.step)
	c.n++
	return t
}

func TestRegisterRejectsDuplicatesAndLateRegistration(t *testing.T) {
	t.Parallel()
	s := New(Config{Tick: time.Hour}, logx.Nop())
	p, _ := ParsePattern("* * *")

	if err := s.Register("daily", p, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := s.Register("daily", p, func(context.Context) error { return nil }); err == nil {
		t.Fatal("duplicate Register must fail")
	}
	if s.TaskCount() != 1 {
		t.Fatalf("TaskCount = %d, want 1", s.TaskCount())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	if err := s.Register("late", p, func(context.Context) error { return nil }); err == nil {
		t.Fatal("Register after Start must fail")
	}
}

func TestNoOverlappingRuns(t *testing.T) {
	t.Parallel()

	s := New(Config{Tick: 10 * time.Millisecond, StopGrace: time.Second}, logx.Nop())
	s.now = newFakeClock().now

	var calls atomic.Int32
	release := make(chan struct{})
	p, _ := ParsePattern("* * *")
	err := s.Register("slow", p, func(context.Context) error {
		calls.Add(1)
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	// Let several ticks pass while the first invocation is blocked.
	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("invocations while first run in flight = %d, want 1 (overlapping ticks must be skipped)", got)
	}

	// After the body finishes, a later tick fires again.
	close(release)
	deadline := time.After(2 * time.Second)
	for calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("task did not fire again after previous run finished")
		case <-time.After(5 * time.Millisecond):
		}
	}

	s.Stop(context.Background())
}

func TestTaskErrorDoesNotAffectOtherTasks(t *testing.T) {
	t.Parallel()

	s := New(Config{Tick: 10 * time.Millisecond, StopGrace: time.Second}, logx.Nop())
	s.now = newFakeClock().now

	var okRuns atomic.Int32
	p, _ := ParsePattern("* * *")
	if err := s.Register("failing", p, func(context.Context) error {
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register("panicking", p, func(context.Context) error {
		panic("boom")
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register("healthy", p, func(context.Context) error {
		okRuns.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	deadline := time.After(2 * time.Second)
	for okRuns.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("healthy task stopped firing alongside failing tasks")
		case <-time.After(5 * time.Millisecond):
		}
	}

	s.Stop(context.Background())
}

func TestStopWaitsForInFlightTask(t *testing.T) {
	t.Parallel()

	s := New(Config{Tick: 10 * time.Millisecond, StopGrace: 2 * time.Second}, logx.Nop())
	s.now = newFakeClock().now

	var finished atomic.Bool
	started := make(chan struct{})
	p, _ := ParsePattern("* * *")
	if err := s.Register("slow", p, func(context.Context) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	<-started
	s.Stop(context.Background())

	if !finished.Load() {
		t.Fatal("Stop returned before the in-flight task body finished")
	}
}
