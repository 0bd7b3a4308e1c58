// Package push is the facade the command/interaction layer talks to.
// It validates input, delegates to the subscriber store and broadcast
// engine, and owns the scheduled broadcast tasks.
package push

import (
	"context"
	"fmt"
	"time"

	"pushbot/internal/broadcast"
	"pushbot/internal/catalog"
	"pushbot/internal/scheduler"
	"pushbot/internal/store"
	"pushbot/internal/transport"
	"pushbot/pkg/logx"
)

// ValidationError rejects malformed input before any store mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type ScheduleConfig struct {
	// Trigger patterns ("minute hour weekday", * as wildcard).
	DailyRecommendation string // default "0 9 *"
	WeeklyReport        string // default "0 10 1"
}

type Config struct {
	Schedule ScheduleConfig
}

type Service struct {
	cfg      Config
	store    *store.Store
	engine   *broadcast.Engine
	sched    *scheduler.Scheduler
	provider catalog.Provider
	log      logx.Logger
}

func New(cfg Config, st *store.Store, engine *broadcast.Engine, sched *scheduler.Scheduler, provider catalog.Provider, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, store: st, engine: engine, sched: sched, provider: provider, log: log}
}

// Start registers the recurring broadcast tasks and launches the
// scheduler.
func (s *Service) Start(ctx context.Context) error {
	if err := s.registerTask("daily-recommendation", s.cfg.Schedule.DailyRecommendation, "0 9 *",
		func(ctx context.Context) error {
			_, err := s.engine.SendDailyRecommendation(ctx, s.provider)
			return err
		}); err != nil {
		return err
	}
	if err := s.registerTask("weekly-report", s.cfg.Schedule.WeeklyReport, "0 10 1",
		func(ctx context.Context) error {
			_, err := s.engine.SendWeeklyReport(ctx)
			return err
		}); err != nil {
		return err
	}

	s.sched.Start(ctx)
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.sched.Stop(ctx)
}

func (s *Service) registerTask(name, pattern, fallback string, fn scheduler.TaskFunc) error {
	if pattern == "" {
		pattern = fallback
	}
	p, err := scheduler.ParsePattern(pattern)
	if err != nil {
		return fmt.Errorf("task %s: %w", name, err)
	}
	return s.sched.Register(name, p, fn)
}

// Subscribe creates (or resets) the subscription for a recipient.
func (s *Service) Subscribe(recipientID, ownerID int64) (store.Subscriber, error) {
	if recipientID <= 0 {
		return store.Subscriber{}, &ValidationError{Field: "recipientId", Reason: "must be positive"}
	}
	return s.store.Add(recipientID, ownerID, nil)
}

// Unsubscribe removes the subscription; reports whether one existed.
func (s *Service) Unsubscribe(recipientID int64) (bool, error) {
	if recipientID <= 0 {
		return false, &ValidationError{Field: "recipientId", Reason: "must be positive"}
	}
	return s.store.Remove(recipientID)
}

// SetPreference flips one named flag. Unknown flags are rejected before
// any store mutation.
func (s *Service) SetPreference(recipientID int64, flag string, value bool) (bool, error) {
	if recipientID <= 0 {
		return false, &ValidationError{Field: "recipientId", Reason: "must be positive"}
	}
	if !store.KnownFlag(flag) {
		return false, &ValidationError{Field: "preference", Reason: fmt.Sprintf("unknown flag %q", flag)}
	}
	return s.store.UpdatePreferences(recipientID, map[string]bool{flag: value})
}

// Status describes one recipient's subscription.
type Status struct {
	Active      bool
	Preferences map[string]bool
	JoinedAt    time.Time
}

func (s *Service) Status(recipientID int64) (Status, bool) {
	sub, ok := s.store.Get(recipientID)
	if !ok {
		return Status{}, false
	}
	return Status{Active: sub.Active, Preferences: sub.Preferences, JoinedAt: sub.JoinedAt}, true
}

// AdminBroadcast sends text to every active subscriber if the actor is
// allow-listed.
func (s *Service) AdminBroadcast(ctx context.Context, actorID int64, text string) (broadcast.Summary, error) {
	msg := transport.Message{Text: text}
	return s.engine.AdminBroadcast(ctx, actorID, msg, nil)
}

// ServiceStatus summarizes the running service.
type ServiceStatus struct {
	SubscriberCount    int
	ActiveCount        int
	ScheduledTaskCount int
}

func (s *Service) ServiceStatus() ServiceStatus {
	total, active := s.store.Counts()
	return ServiceStatus{
		SubscriberCount:    total,
		ActiveCount:        active,
		ScheduledTaskCount: s.sched.TaskCount(),
	}
}
