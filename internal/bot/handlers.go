// Package bot wires Telegram commands to the push service. It is a
// thin interaction layer: parse, delegate, reply.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	tele "gopkg.in/telebot.v4"

	"pushbot/internal/broadcast"
	"pushbot/internal/push"
	"pushbot/pkg/logx"
)

type Handler struct {
	ctx context.Context
	svc *push.Service
	log logx.Logger
}

// Register installs the command handlers on the telebot instance.
func Register(ctx context.Context, b *tele.Bot, svc *push.Service, log logx.Logger) {
	h := &Handler{ctx: ctx, svc: svc, log: log}

	b.Handle("/start", h.onStart)
	b.Handle("/stop", h.onStop)
	b.Handle("/prefs", h.onPrefs)
	b.Handle("/status", h.onStatus)
	b.Handle("/broadcast", h.onBroadcast)
	b.Handle("/service", h.onService)
	b.Handle(tele.OnCallback, h.onCallback)
}

func (h *Handler) onStart(c tele.Context) error {
	sub, err := h.svc.Subscribe(c.Chat().ID, c.Sender().ID)
	if err != nil {
		h.log.Warn("subscribe failed", logx.Int64("chat_id", c.Chat().ID), logx.Err(err))
		return c.Send("Subscription failed, please try again later.")
	}
	return c.Send(fmt.Sprintf(
		"You're subscribed! 🎉\nDaily recommendations: %v\nPromotions: %v\n\nUse /prefs to adjust, /stop to unsubscribe.",
		sub.Pref("dailyRecommendation"), sub.Pref("promotions")))
}

func (h *Handler) onStop(c tele.Context) error {
	existed, err := h.svc.Unsubscribe(c.Chat().ID)
	if err != nil {
		h.log.Warn("unsubscribe failed", logx.Int64("chat_id", c.Chat().ID), logx.Err(err))
		return c.Send("Unsubscribe failed, please try again later.")
	}
	if !existed {
		return c.Send("You were not subscribed.")
	}
	return c.Send("Unsubscribed. Come back anytime with /start.")
}

func (h *Handler) onPrefs(c tele.Context) error {
	args := c.Args()
	if len(args) == 0 {
		st, ok := h.svc.Status(c.Chat().ID)
		if !ok {
			return c.Send("Not subscribed. Use /start first.")
		}
		return c.Send(formatPrefs(st), tele.ModeHTML)
	}
	if len(args) != 2 {
		return c.Send("Usage: /prefs <flag> <on|off>")
	}

	value := strings.EqualFold(args[1], "on") || strings.EqualFold(args[1], "true")
	ok, err := h.svc.SetPreference(c.Chat().ID, args[0], value)
	if err != nil {
		var verr *push.ValidationError
		if errors.As(err, &verr) {
			return c.Send(verr.Error())
		}
		h.log.Warn("set preference failed", logx.Int64("chat_id", c.Chat().ID), logx.Err(err))
		return c.Send("Could not update preference, please try again later.")
	}
	if !ok {
		return c.Send("Not subscribed. Use /start first.")
	}
	return c.Send(fmt.Sprintf("Preference %s set to %v.", args[0], value))
}

func (h *Handler) onStatus(c tele.Context) error {
	st, ok := h.svc.Status(c.Chat().ID)
	if !ok {
		return c.Send("Not subscribed. Use /start first.")
	}
	state := "inactive"
	if st.Active {
		state = "active"
	}
	return c.Send(fmt.Sprintf("Subscription: %s\nJoined: %s\n\n%s",
		state, st.JoinedAt.Format("2006-01-02"), formatPrefs(st)), tele.ModeHTML)
}

func (h *Handler) onBroadcast(c tele.Context) error {
	text := strings.TrimSpace(c.Message().Payload)
	if text == "" {
		return c.Send("Usage: /broadcast <message>")
	}

	sum, err := h.svc.AdminBroadcast(h.ctx, c.Sender().ID, text)
	if err != nil {
		if errors.Is(err, broadcast.ErrUnauthorized) {
			return c.Send("You are not allowed to broadcast.")
		}
		h.log.Error("admin broadcast failed", logx.Int64("actor_id", c.Sender().ID), logx.Err(err))
		return c.Send("Broadcast failed.")
	}
	return c.Send(fmt.Sprintf("Broadcast done: %d ok, %d failed, %d total.",
		sum.Succeeded, sum.Failed, sum.Total))
}

func (h *Handler) onService(c tele.Context) error {
	st := h.svc.ServiceStatus()
	return c.Send(fmt.Sprintf("Subscribers: %d\nActive: %d\nScheduled tasks: %d",
		st.SubscriberCount, st.ActiveCount, st.ScheduledTaskCount))
}

func (h *Handler) onCallback(c tele.Context) error {
	data := strings.TrimPrefix(c.Callback().Data, "\f")
	if strings.TrimSpace(data) != "unsubscribe" {
		return c.Respond(&tele.CallbackResponse{})
	}
	if _, err := h.svc.Unsubscribe(c.Chat().ID); err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Unsubscribe failed."})
	}
	return c.Respond(&tele.CallbackResponse{Text: "Unsubscribed."})
}

func formatPrefs(st push.Status) string {
	flags := make([]string, 0, len(st.Preferences))
	for name := range st.Preferences {
		flags = append(flags, name)
	}
	sort.Strings(flags)

	var b strings.Builder
	b.WriteString("<b>Preferences</b>\n")
	for _, name := range flags {
		mark := "❌"
		if st.Preferences[name] {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%s %s\n", mark, name)
	}
	b.WriteString("\nToggle with /prefs <flag> <on|off>")
	return b.String()
}
