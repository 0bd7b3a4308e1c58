package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pushbot/internal/transport"
	"pushbot/pkg/logx"
)

// fakeAdapter records sends and can fail selected recipients.
type fakeAdapter struct {
	mu     sync.Mutex
	sent   []int64
	failBy map[int64]error
}

func (f *fakeAdapter) SendText(_ context.Context, to transport.ChatTarget, _ string, _ *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to.ChatID)
	if err := f.failBy[to.ChatID]; err != nil {
		return transport.MessageRef{}, err
	}
	return transport.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) SendPhoto(ctx context.Context, to transport.ChatTarget, _, caption string, opt *transport.SendOptions) (transport.MessageRef, error) {
	return f.SendText(ctx, to, caption, opt)
}

func (f *fakeAdapter) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func targets(n int) []transport.ChatTarget {
	ts := make([]transport.ChatTarget, n)
	for i := range ts {
		ts[i] = transport.ChatTarget{ChatID: int64(i + 1)}
	}
	return ts
}

func TestSendBatchesAndSleepsBetweenBatches(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{}
	d := New(Config{RatePerSec: 10_000}, adapter, logx.Nop())

	var mu sync.Mutex
	var sleeps []time.Duration
	d.sleep = func(_ context.Context, dur time.Duration) {
		mu.Lock()
		sleeps = append(sleeps, dur)
		mu.Unlock()
	}

	outcomes := d.Send(context.Background(), targets(101), transport.Message{Text: "hi"}, 50, time.Second)

	require.Len(t, outcomes, 101)
	require.Equal(t, 101, adapter.sentCount())
	// 101 recipients at batch size 50 is three batches; the pause runs
	// between batches only, never after the last.
	require.Equal(t, []time.Duration{time.Second, time.Second}, sleeps)

	for i, out := range outcomes {
		require.True(t, out.OK, "outcome %d", i)
		require.Equal(t, int64(i+1), out.Recipient, "outcomes keep target order")
		require.Equal(t, FailureNone, out.Failure)
	}
}

func TestSendNoSleepForSingleBatch(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{}
	d := New(Config{RatePerSec: 10_000}, adapter, logx.Nop())

	slept := 0
	d.sleep = func(context.Context, time.Duration) { slept++ }

	outcomes := d.Send(context.Background(), targets(50), transport.Message{Text: "hi"}, 50, time.Second)
	require.Len(t, outcomes, 50)
	require.Zero(t, slept)
}

func TestSendEmptyTargets(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{}
	d := New(Config{}, adapter, logx.Nop())

	outcomes := d.Send(context.Background(), nil, transport.Message{Text: "hi"}, 50, time.Second)
	require.Empty(t, outcomes)
	require.Zero(t, adapter.sentCount())
}

func TestSendReportsPerRecipientFailures(t *testing.T) {
	t.Parallel()

	blocked := transport.NewError(transport.KindUnreachable, errors.New("bot was blocked by the user"))
	flooded := &transport.Error{Kind: transport.KindRateLimited, RetryAfter: 3 * time.Second, Err: errors.New("too many requests")}
	adapter := &fakeAdapter{failBy: map[int64]error{
		2: blocked,
		3: flooded,
		4: fmt.Errorf("connection refused"),
	}}
	d := New(Config{RatePerSec: 10_000}, adapter, logx.Nop())
	d.sleep = func(context.Context, time.Duration) {}

	outcomes := d.Send(context.Background(), targets(5), transport.Message{Text: "hi"}, 50, 0)
	require.Len(t, outcomes, 5)

	require.True(t, outcomes[0].OK)
	require.True(t, outcomes[4].OK)

	require.False(t, outcomes[1].OK)
	require.Equal(t, FailurePermanent, outcomes[1].Failure)
	require.ErrorIs(t, outcomes[1].Err, blocked)

	require.False(t, outcomes[2].OK)
	require.Equal(t, FailureTransient, outcomes[2].Failure)

	// Errors the adapter did not classify stay confined to the recipient.
	require.False(t, outcomes[3].OK)
	require.Equal(t, FailurePermanent, outcomes[3].Failure)
}

func TestSendOne(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{}
	d := New(Config{RatePerSec: 10_000}, adapter, logx.Nop())

	out := d.SendOne(context.Background(), transport.ChatTarget{ChatID: 7}, transport.Message{Text: "hi"})
	require.True(t, out.OK)
	require.Equal(t, int64(7), out.Recipient)
}

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{name: "nil", err: nil, want: FailureNone},
		{name: "unreachable", err: transport.NewError(transport.KindUnreachable, errors.New("blocked")), want: FailurePermanent},
		{name: "rate limited", err: transport.NewError(transport.KindRateLimited, errors.New("flood")), want: FailureTransient},
		{name: "timeout", err: transport.NewError(transport.KindTimeout, errors.New("deadline")), want: FailureTransient},
		{name: "network", err: transport.NewError(transport.KindNetwork, errors.New("reset")), want: FailureTransient},
		{name: "wrapped transport error", err: fmt.Errorf("send: %w", transport.NewError(transport.KindUnreachable, errors.New("gone"))), want: FailurePermanent},
		{name: "unclassified", err: errors.New("boom"), want: FailurePermanent},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
