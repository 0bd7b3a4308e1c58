package telegram

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"pushbot/internal/transport"
)

func kindOf(t *testing.T, err error) transport.ErrorKind {
	t.Helper()
	kind, ok := transport.KindOf(err)
	require.True(t, ok, "classify must always produce a transport error")
	return kind
}

func TestClassifyForbidden(t *testing.T) {
	t.Parallel()
	err := classify(&tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"})
	require.Equal(t, transport.KindUnreachable, kindOf(t, err))
}

func TestClassifyFlood(t *testing.T) {
	t.Parallel()
	src := tele.FloodError{
		Error:      &tele.Error{Code: 429, Description: "Too Many Requests: retry after 14"},
		RetryAfter: 14,
	}
	err := classify(src)

	var te *transport.Error
	require.ErrorAs(t, err, &te)
	require.Equal(t, transport.KindRateLimited, te.Kind)
	require.Equal(t, 14*time.Second, te.RetryAfter)
}

func TestClassifyBadRequestDescriptions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		desc string
		want transport.ErrorKind
	}{
		{desc: "Bad Request: chat not found", want: transport.KindUnreachable},
		{desc: "Bad Request: user is deactivated", want: transport.KindUnreachable},
		{desc: "Bad Request: chat was deleted", want: transport.KindUnreachable},
		{desc: "Bad Request: PEER_ID_INVALID", want: transport.KindUnreachable},
		{desc: "Bad Request: message text is empty", want: transport.KindNetwork},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.desc, func(t *testing.T) {
			t.Parallel()
			err := classify(&tele.Error{Code: 400, Description: tt.desc})
			require.Equal(t, tt.want, kindOf(t, err))
		})
	}
}

func TestClassifyServerError(t *testing.T) {
	t.Parallel()
	err := classify(&tele.Error{Code: 502, Description: "Bad Gateway"})
	require.Equal(t, transport.KindNetwork, kindOf(t, err))
}

func TestClassifyWrappedAPIError(t *testing.T) {
	t.Parallel()
	err := classify(fmt.Errorf("send: %w", &tele.Error{Code: 403, Description: "Forbidden"}))
	require.Equal(t, transport.KindUnreachable, kindOf(t, err))
}

func TestClassifyTimeout(t *testing.T) {
	t.Parallel()
	err := classify(context.DeadlineExceeded)
	require.Equal(t, transport.KindTimeout, kindOf(t, err))
}

func TestClassifyUnknownIsNetwork(t *testing.T) {
	t.Parallel()
	err := classify(errors.New("connection reset by peer"))
	require.Equal(t, transport.KindNetwork, kindOf(t, err))
}

func TestClassifyPreservesCause(t *testing.T) {
	t.Parallel()
	cause := &tele.Error{Code: 403, Description: "Forbidden"}
	err := classify(cause)
	require.ErrorIs(t, err, cause)
}
