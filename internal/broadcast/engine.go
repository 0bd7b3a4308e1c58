// Package broadcast selects target recipients, drives the dispatcher
// and folds delivery outcomes back into subscriber state: permanent
// failures deactivate the recipient, transient ones leave it eligible
// for the next run.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pushbot/internal/admin"
	"pushbot/internal/dispatch"
	"pushbot/internal/store"
	"pushbot/internal/transport"
	"pushbot/pkg/logx"
)

// ErrUnauthorized is returned when a non-admin requests a privileged
// broadcast. No delivery is attempted.
var ErrUnauthorized = errors.New("broadcast: unauthorized")

// Sender is the dispatcher surface the engine needs. Satisfied by
// *dispatch.Dispatcher.
type Sender interface {
	Send(ctx context.Context, targets []transport.ChatTarget, msg transport.Message, batchSize int, interBatchDelay time.Duration) []dispatch.Outcome
	SendOne(ctx context.Context, to transport.ChatTarget, msg transport.Message) dispatch.Outcome
}

// Summary aggregates one broadcast run. Callers always get the full
// picture, never a silent partial success.
type Summary struct {
	Succeeded int
	Failed    int
	Total     int
}

type Config struct {
	BatchSize       int           // default 50
	InterBatchDelay time.Duration // default 1s
}

type Engine struct {
	cfg    Config
	store  *store.Store
	sender Sender
	auth   *admin.Authority
	log    logx.Logger
}

func New(cfg Config, st *store.Store, sender Sender, auth *admin.Authority, log logx.Logger) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.InterBatchDelay <= 0 {
		cfg.InterBatchDelay = time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{cfg: cfg, store: st, sender: sender, auth: auth, log: log}
}

// Broadcast delivers msg to every active subscriber matching pred and
// returns the aggregated summary. Recipients with a permanent delivery
// failure are deactivated; transient failures count as failed but stay
// subscribed.
func (e *Engine) Broadcast(ctx context.Context, msg transport.Message, pred store.Predicate) (Summary, error) {
	runID := uuid.NewString()
	log := e.log.With(logx.String("run_id", runID))

	targets := e.store.ListActive(pred)
	log.Info("broadcast started", logx.Int("targets", len(targets)))

	chats := make([]transport.ChatTarget, len(targets))
	for i, sub := range targets {
		chats[i] = transport.ChatTarget{ChatID: sub.RecipientID}
	}

	start := time.Now()
	outcomes := e.sender.Send(ctx, chats, msg, e.cfg.BatchSize, e.cfg.InterBatchDelay)
	sum := e.settle(outcomes)

	log.Info("broadcast finished",
		logx.Int("succeeded", sum.Succeeded),
		logx.Int("failed", sum.Failed),
		logx.Int("total", sum.Total),
		logx.Duration("took", time.Since(start)))
	return sum, nil
}

// SendToOne delivers msg to a single recipient, applying the same
// classification and deactivation policy as a full broadcast.
func (e *Engine) SendToOne(ctx context.Context, recipientID int64, msg transport.Message) dispatch.Outcome {
	out := e.sender.SendOne(ctx, transport.ChatTarget{ChatID: recipientID}, msg)
	if out.Failure == dispatch.FailurePermanent {
		e.deactivate(out)
	}
	return out
}

// AdminBroadcast runs Broadcast only for allow-listed actors.
func (e *Engine) AdminBroadcast(ctx context.Context, actorID int64, msg transport.Message, pred store.Predicate) (Summary, error) {
	if !e.auth.IsAdmin(actorID) {
		e.log.Warn("admin broadcast rejected", logx.Int64("actor_id", actorID))
		return Summary{}, fmt.Errorf("actor %d: %w", actorID, ErrUnauthorized)
	}
	e.log.Info("admin broadcast requested", logx.Int64("actor_id", actorID))
	return e.Broadcast(ctx, msg, pred)
}

func (e *Engine) settle(outcomes []dispatch.Outcome) Summary {
	sum := Summary{Total: len(outcomes)}
	for _, out := range outcomes {
		if out.OK {
			sum.Succeeded++
			continue
		}
		sum.Failed++
		if out.Failure == dispatch.FailurePermanent {
			e.deactivate(out)
		}
	}
	return sum
}

func (e *Engine) deactivate(out dispatch.Outcome) {
	reason := "permanent delivery failure"
	if out.Err != nil {
		reason = out.Err.Error()
	}
	if err := e.store.Deactivate(out.Recipient, reason); err != nil {
		e.log.Error("deactivation not persisted", logx.Int64("recipient_id", out.Recipient), logx.Err(err))
	}
}
