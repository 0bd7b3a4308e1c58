package telegram

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	tele "gopkg.in/telebot.v4"

	"pushbot/internal/transport"
)

// classify maps a telebot error to the transport error taxonomy. This
// is the only place that knows about Telegram status-code conventions;
// everything above sees transport.Error kinds.
func classify(err error) error {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return &transport.Error{
			Kind:       transport.KindRateLimited,
			RetryAfter: time.Duration(flood.RetryAfter) * time.Second,
			Err:        err,
		}
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 403:
			// Forbidden: blocked by the user, kicked from the chat,
			// user deactivated. The recipient is gone for good.
			return transport.NewError(transport.KindUnreachable, err)
		case apiErr.Code == 429:
			return transport.NewError(transport.KindRateLimited, err)
		case apiErr.Code == 400 && unreachableDescription(apiErr.Description):
			return transport.NewError(transport.KindUnreachable, err)
		case apiErr.Code >= 500:
			return transport.NewError(transport.KindNetwork, err)
		default:
			return transport.NewError(transport.KindNetwork, err)
		}
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return transport.NewError(transport.KindNetwork, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return transport.NewError(transport.KindTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return transport.NewError(transport.KindTimeout, err)
	}

	return transport.NewError(transport.KindNetwork, err)
}

func unreachableDescription(desc string) bool {
	d := strings.ToLower(desc)
	switch {
	case strings.Contains(d, "chat not found"),
		strings.Contains(d, "user is deactivated"),
		strings.Contains(d, "bot was blocked"),
		strings.Contains(d, "chat was deleted"),
		strings.Contains(d, "peer_id_invalid"):
		return true
	}
	return false
}
