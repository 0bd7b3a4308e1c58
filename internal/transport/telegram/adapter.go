package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	tele "gopkg.in/telebot.v4"

	"pushbot/internal/transport"
	"pushbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

// Adapter delivers messages through the Telegram Bot API using telebot.
// All outgoing requests pass through a circuit breaker so a broken
// Telegram connection degrades into transient delivery failures instead
// of hammering the API.
type Adapter struct {
	cfg Config
	log logx.Logger

	bot     *tele.Bot
	breaker *gobreaker.CircuitBreaker[*tele.Message]
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}

	cb := gobreaker.NewCircuitBreaker[*tele.Message](gobreaker.Settings{
		Name:        "telegram-send",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 8
		},
		IsSuccessful: func(err error) bool {
			// Per-recipient API rejections (blocked, chat gone) are not a
			// transport outage and must not trip the breaker.
			if err == nil {
				return true
			}
			var apiErr *tele.Error
			return errors.As(err, &apiErr)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				logx.String("breaker", name),
				logx.String("from", from.String()),
				logx.String("to", to.String()))
		},
	})

	return &Adapter{cfg: cfg, log: log, bot: b, breaker: cb}, nil
}

// Bot exposes the underlying telebot instance so the command handler
// layer can register handlers and run the poll loop.
func (a *Adapter) Bot() *tele.Bot { return a.bot }

// Start runs the long-poll loop until the context is cancelled.
func (a *Adapter) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		a.bot.Stop()
	}()
	a.log.Info("polling started")
	a.bot.Start() // blocks until Stop()
	a.log.Info("polling stopped")
}

func (a *Adapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	return a.send(ctx, to, text, opt)
}

func (a *Adapter) SendPhoto(ctx context.Context, to transport.ChatTarget, photo, caption string, opt *transport.SendOptions) (transport.MessageRef, error) {
	p := &tele.Photo{File: photoFile(photo), Caption: caption}
	return a.send(ctx, to, p, opt)
}

func (a *Adapter) send(ctx context.Context, to transport.ChatTarget, what any, opt *transport.SendOptions) (transport.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return transport.MessageRef{}, transport.NewError(transport.KindTimeout, err)
	}

	chat := &tele.Chat{ID: to.ChatID}
	msg, err := a.breaker.Execute(func() (*tele.Message, error) {
		return a.bot.Send(chat, what, sendOptions(opt))
	})
	if err != nil {
		return transport.MessageRef{}, classify(err)
	}
	return transport.MessageRef{ChatID: to.ChatID, MessageID: msg.ID}, nil
}

func sendOptions(opt *transport.SendOptions) *tele.SendOptions {
	if opt == nil {
		opt = &transport.SendOptions{}
	}
	out := &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
	}
	if len(opt.Buttons) > 0 {
		rm := &tele.ReplyMarkup{}
		rows := make([][]tele.InlineButton, 0, len(opt.Buttons))
		for _, row := range opt.Buttons {
			btns := make([]tele.InlineButton, 0, len(row))
			for _, b := range row {
				btns = append(btns, tele.InlineButton{Text: b.Text, URL: b.URL, Data: b.Data})
			}
			rows = append(rows, btns)
		}
		rm.InlineKeyboard = rows
		out.ReplyMarkup = rm
	}
	return out
}

func photoFile(ref string) tele.File {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return tele.FromURL(ref)
	}
	return tele.FromDisk(ref)
}
