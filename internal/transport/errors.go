package transport

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a delivery failure independently of any
// transport's status-code conventions.
type ErrorKind string

const (
	// KindUnreachable means the recipient can never be reached again:
	// the bot was blocked, the chat was deleted, or the account is gone.
	KindUnreachable ErrorKind = "unreachable"

	// KindRateLimited means the transport asked us to slow down.
	KindRateLimited ErrorKind = "rate_limited"

	// KindTimeout means the request did not complete in time.
	KindTimeout ErrorKind = "timeout"

	// KindNetwork covers every other transient transport failure.
	KindNetwork ErrorKind = "network"
)

// Permanent reports whether a failure of this kind should stop future
// delivery attempts to the recipient.
func (k ErrorKind) Permanent() bool { return k == KindUnreachable }

// Error is the failure surface adapters must produce for API-level
// problems. Match with errors.As.
type Error struct {
	Kind       ErrorKind
	RetryAfter time.Duration // non-zero only for KindRateLimited
	Err        error
}

func (e *Error) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("transport: %s (retry after %s): %v", e.Kind, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("transport: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a classification kind.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the classification from err. ok is false when err is
// not a transport error at all (the adapter failed before issuing the
// request).
func KindOf(err error) (ErrorKind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return "", false
}
