// Package scheduler triggers named broadcast tasks at fixed wall-clock
// patterns. One background loop ticks at a short interval; each tick
// matches every task's trigger pattern against the current time and
// fires due tasks asynchronously, at most one concurrent run per task.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"pushbot/pkg/logx"
)

type Config struct {
	// Tick is the match interval; defaults to one minute. Tests use a
	// shorter tick.
	Tick time.Duration
	// StopGrace bounds how long Stop waits for in-flight task bodies.
	StopGrace time.Duration
}

// Task bodies report failure via error; a failing body is logged and
// never affects other tasks or the tick loop.
type TaskFunc func(ctx context.Context) error

type task struct {
	name    string
	pattern Pattern
	run     TaskFunc

	mu       sync.Mutex
	running  bool
	lastFire time.Time // truncated to the minute that fired
}

type Scheduler struct {
	cfg Config
	log logx.Logger

	// now is swappable so tests control the wall clock.
	now func() time.Time

	mu      sync.Mutex
	tasks   []*task
	started bool
	stopCh  chan struct{}
	loopWG  sync.WaitGroup
	taskWG  sync.WaitGroup
}

func New(cfg Config, log logx.Logger) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Minute
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = 5 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{cfg: cfg, log: log, now: time.Now}
}

// Register adds a named task. Tasks are registered before Start and
// live until the scheduler shuts down; duplicate names are rejected.
func (s *Scheduler) Register(name string, pattern Pattern, fn TaskFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started, cannot register %q", name)
	}
	for _, t := range s.tasks {
		if t.name == name {
			return fmt.Errorf("task %q already registered", name)
		}
	}
	s.tasks = append(s.tasks, &task{name: name, pattern: pattern, run: fn})
	s.log.Info("task registered", logx.String("task", name), logx.String("pattern", pattern.String()))
	return nil
}

// TaskCount returns the number of registered tasks.
func (s *Scheduler) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Start launches the tick loop. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.stopCh = make(chan struct{})

	s.loopWG.Add(1)
	go s.loop(ctx, s.stopCh)
	s.log.Info("scheduler started",
		logx.Int("tasks", len(s.tasks)),
		logx.Duration("tick", s.cfg.Tick))
}

// Stop halts the tick loop, then waits for in-flight task bodies to
// finish or the grace period to elapse, whichever comes first. No new
// ticks are evaluated once Stop begins.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stopCh)
	s.mu.Unlock()

	s.loopWG.Wait()

	done := make(chan struct{})
	go func() {
		s.taskWG.Wait()
		close(done)
	}()

	grace := time.NewTimer(s.cfg.StopGrace)
	defer grace.Stop()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-grace.C:
		s.log.Warn("scheduler stop grace elapsed; tasks still in flight")
	case <-ctx.Done():
		s.log.Warn("scheduler stop cancelled", logx.Err(ctx.Err()))
	}
}

func (s *Scheduler) loop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.loopWG.Done()

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	// Evaluate immediately so a process started right on a trigger
	// minute doesn't miss it.
	s.evaluate(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.evaluate(ctx)
		}
	}
}

// evaluate fires every due task. The loop only hands work off; it never
// waits for a task body inline.
func (s *Scheduler) evaluate(ctx context.Context) {
	now := s.now()
	minute := now.Truncate(time.Minute)

	s.mu.Lock()
	tasks := s.tasks
	s.mu.Unlock()

	for _, t := range tasks {
		if !t.pattern.Matches(now) {
			continue
		}

		t.mu.Lock()
		if t.running || t.lastFire.Equal(minute) {
			// Previous invocation still in flight, or this minute
			// already fired: skip, never queue.
			skipped := t.running
			t.mu.Unlock()
			if skipped {
				s.log.Warn("task still running, skipping tick", logx.String("task", t.name))
			}
			continue
		}
		t.running = true
		t.lastFire = minute
		t.mu.Unlock()

		s.taskWG.Add(1)
		go s.invoke(ctx, t)
	}
}

func (s *Scheduler) invoke(ctx context.Context, t *task) {
	defer s.taskWG.Done()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in scheduled task",
				logx.String("task", t.name),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
		}
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
	}()

	start := time.Now()
	if err := t.run(ctx); err != nil {
		s.log.Warn("task failed",
			logx.String("task", t.name),
			logx.Duration("took", time.Since(start)),
			logx.Err(err))
		return
	}
	s.log.Info("task ok",
		logx.String("task", t.name),
		logx.Duration("took", time.Since(start)))
}
