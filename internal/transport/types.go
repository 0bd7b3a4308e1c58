package transport

import "context"

// ChatTarget addresses one recipient (a Telegram chat in the default
// adapter, but nothing outside the adapter assumes that).
type ChatTarget struct {
	ChatID int64
}

// MessageRef identifies a delivered message.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Button is one inline keyboard entry. URL and Data are mutually
// exclusive; the adapter picks whichever is set.
type Button struct {
	Text string
	URL  string
	Data string
}

// Message is one logical payload to deliver. When Photo is set the
// adapter sends a photo with Text as the caption, otherwise plain text.
type Message struct {
	Text           string
	Photo          string // file reference or URL; empty means text-only
	ParseMode      string // e.g. "HTML"
	DisablePreview bool
	Buttons        [][]Button
}

// Adapter is the messaging transport collaborator.
type Adapter interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendPhoto(ctx context.Context, to ChatTarget, photo, caption string, opt *SendOptions) (MessageRef, error)
}

// SendOptions carries formatting hints shared by SendText and SendPhoto.
type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	Buttons        [][]Button
}

// Options extracts the send options embedded in a Message.
func (m Message) Options() *SendOptions {
	return &SendOptions{
		ParseMode:      m.ParseMode,
		DisablePreview: m.DisablePreview,
		Buttons:        m.Buttons,
	}
}

// Deliver sends the message through the adapter, choosing the photo or
// text path based on the payload.
func Deliver(ctx context.Context, a Adapter, to ChatTarget, m Message) (MessageRef, error) {
	if m.Photo != "" {
		return a.SendPhoto(ctx, to, m.Photo, m.Text, m.Options())
	}
	return a.SendText(ctx, to, m.Text, m.Options())
}
