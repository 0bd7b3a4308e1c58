// Package dispatch delivers one logical message to many recipients in
// rate-limited batches. It reports per-recipient outcomes and never
// aborts a run because individual sends failed.
package dispatch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"pushbot/internal/transport"
	"pushbot/pkg/logx"
)

// FailureKind tags a delivery outcome.
type FailureKind int

const (
	FailureNone FailureKind = iota
	// FailureTransient is expected to succeed on a later attempt
	// (rate limit, timeout, flaky network). The recipient stays
	// eligible for the next broadcast.
	FailureTransient
	// FailurePermanent means the recipient can never be reached again
	// and should be deactivated.
	FailurePermanent
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureTransient:
		return "transient"
	case FailurePermanent:
		return "permanent"
	}
	return "unknown"
}

// Outcome is the result of one delivery attempt.
type Outcome struct {
	Recipient int64
	OK        bool
	Failure   FailureKind
	Err       error
}

type Config struct {
	RatePerSec int // per-send limiter on top of batching; <=0 means 25
}

// Dispatcher fans a message out to recipients. Batches run strictly
// sequentially; within a batch all sends are issued concurrently and
// the batch settles before the next one starts.
type Dispatcher struct {
	adapter transport.Adapter
	limiter *rate.Limiter
	log     logx.Logger

	// sleep is swappable so tests can count inter-batch delays
	// deterministically.
	sleep func(ctx context.Context, d time.Duration)
}

func New(cfg Config, adapter transport.Adapter, log logx.Logger) *Dispatcher {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 25
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		adapter: adapter,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
		sleep:   sleepCtx,
	}
}

// Send delivers msg to every target: batches of at most batchSize, an
// interBatchDelay pause between batches (skipped after the last one).
// The returned slice has one outcome per target, in target order.
func (d *Dispatcher) Send(ctx context.Context, targets []transport.ChatTarget, msg transport.Message, batchSize int, interBatchDelay time.Duration) []Outcome {
	if batchSize <= 0 {
		batchSize = 50
	}

	outcomes := make([]Outcome, len(targets))
	for start := 0; start < len(targets); start += batchSize {
		end := min(start+batchSize, len(targets))
		batch := targets[start:end]

		var wg sync.WaitGroup
		wg.Add(len(batch))
		for i, t := range batch {
			go func(idx int, to transport.ChatTarget) {
				defer wg.Done()
				outcomes[start+idx] = d.sendOne(ctx, to, msg)
			}(i, t)
		}
		wg.Wait()

		if end < len(targets) && interBatchDelay > 0 {
			d.sleep(ctx, interBatchDelay)
		}
	}
	return outcomes
}

// SendOne delivers msg to a single recipient and classifies the result.
func (d *Dispatcher) SendOne(ctx context.Context, to transport.ChatTarget, msg transport.Message) Outcome {
	return d.sendOne(ctx, to, msg)
}

func (d *Dispatcher) sendOne(ctx context.Context, to transport.ChatTarget, msg transport.Message) Outcome {
	if err := d.limiter.Wait(ctx); err != nil {
		return Outcome{Recipient: to.ChatID, Failure: FailureTransient, Err: err}
	}

	_, err := transport.Deliver(ctx, d.adapter, to, msg)
	out := Outcome{Recipient: to.ChatID, OK: err == nil, Failure: Classify(err), Err: err}
	if err != nil {
		d.log.Warn("delivery failed",
			logx.Int64("recipient_id", to.ChatID),
			logx.String("failure", out.Failure.String()),
			logx.Err(err))
	}
	return out
}

// Classify maps a send error to a failure kind. Errors that are not
// transport errors at all mean the collaborator failed before issuing
// the request; they are confined to the recipient as permanent.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	kind, ok := transport.KindOf(err)
	if !ok {
		return FailurePermanent
	}
	if kind.Permanent() {
		return FailurePermanent
	}
	return FailureTransient
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
