package broadcast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pushbot/internal/catalog"
	"pushbot/internal/dispatch"
	"pushbot/internal/store"
	"pushbot/internal/transport"
	"pushbot/pkg/logx"
)

// ErrNoContent is returned when the catalog has nothing to recommend.
var ErrNoContent = errors.New("broadcast: no content to send")

const dailyItemCount = 5

// unsubscribeRow is attached to every scheduled push so recipients can
// opt out in one tap. The command layer handles the callback.
func unsubscribeRow() [][]transport.Button {
	return [][]transport.Button{
		{{Text: "🔕 Unsubscribe", Data: "unsubscribe"}},
	}
}

// SendDailyRecommendation fetches today's items from the catalog
// provider, formats the digest and broadcasts it to subscribers with
// the dailyRecommendation flag.
func (e *Engine) SendDailyRecommendation(ctx context.Context, provider catalog.Provider) (Summary, error) {
	items, err := provider.DailyItems(ctx, dailyItemCount)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch daily items: %w", err)
	}
	if len(items) == 0 {
		e.log.Warn("no items to recommend today")
		return Summary{}, ErrNoContent
	}

	msg := transport.Message{
		Text:      formatDailyDigest(items),
		ParseMode: "HTML",
		Buttons:   unsubscribeRow(),
	}
	return e.Broadcast(ctx, msg, store.PrefEnabled(store.PrefDailyRecommendation))
}

// SendPromotionAlert broadcasts a promotion to subscribers with the
// promotions flag.
func (e *Engine) SendPromotionAlert(ctx context.Context, promo catalog.Promotion) (Summary, error) {
	msg := transport.Message{
		Text:      formatPromotion(promo),
		ParseMode: "HTML",
		Buttons:   unsubscribeRow(),
	}
	return e.Broadcast(ctx, msg, store.PrefEnabled(store.PrefPromotions))
}

// SendWeeklyReport broadcasts subscriber statistics to recipients that
// opted into the weekly report.
func (e *Engine) SendWeeklyReport(ctx context.Context) (Summary, error) {
	total, active := e.store.Counts()
	msg := transport.Message{
		Text:      formatWeeklyReport(total, active),
		ParseMode: "HTML",
		Buttons:   unsubscribeRow(),
	}
	return e.Broadcast(ctx, msg, store.PrefEnabled(store.PrefWeeklyReport))
}

// SendPriceAlert notifies a single recipient of a price change on a
// watched item.
func (e *Engine) SendPriceAlert(ctx context.Context, recipientID int64, item catalog.Item, oldPrice, newPrice float64) dispatch.Outcome {
	msg := transport.Message{
		Text:      formatPriceAlert(item, oldPrice, newPrice),
		ParseMode: "HTML",
		Buttons: [][]transport.Button{
			{{Text: "🛒 Buy now", URL: item.URL}},
		},
	}
	out := e.SendToOne(ctx, recipientID, msg)
	if !out.OK {
		e.log.Warn("price alert not delivered",
			logx.Int64("recipient_id", recipientID),
			logx.String("item", item.Title),
			logx.Err(out.Err))
	}
	return out
}

func formatDailyDigest(items []catalog.Item) string {
	var b strings.Builder
	b.WriteString("🏆 <b>Daily Product Recommendations</b>\n\n")
	b.WriteString(fmt.Sprintf("📅 <b>%s</b>\n\n", time.Now().Format("2006-01-02")))
	for i, it := range items {
		fmt.Fprintf(&b, "<b>%d. %s</b>\n", i+1, escapeHTML(it.Title))
		fmt.Fprintf(&b, "💰 Price: <b>%s</b>\n", escapeHTML(it.Price))
		if it.Platform != "" {
			fmt.Fprintf(&b, "🏪 Platform: %s\n", escapeHTML(it.Platform))
		}
		fmt.Fprintf(&b, "🔍 <a href=\"%s\">Link here</a>\n\n", it.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatPromotion(p catalog.Promotion) string {
	var b strings.Builder
	b.WriteString("🎉 <b>Limited-time promotion</b>\n\n")
	fmt.Fprintf(&b, "🏷️ <b>%s</b>\n", escapeHTML(p.Title))
	fmt.Fprintf(&b, "💸 Discount: <b>%s</b>\n", escapeHTML(p.Discount))
	if !p.EndsAt.IsZero() {
		fmt.Fprintf(&b, "⏰ Valid until: %s\n", p.EndsAt.Format("2006-01-02 15:04"))
	}
	if p.Description != "" {
		b.WriteString("\n")
		b.WriteString(escapeHTML(p.Description))
		b.WriteString("\n")
	}
	b.WriteString("\n🔥 Don't miss it!")
	return b.String()
}

func formatWeeklyReport(total, active int) string {
	var b strings.Builder
	b.WriteString("📊 <b>Weekly report</b>\n\n")
	fmt.Fprintf(&b, "👥 Subscribers: %d\n", total)
	fmt.Fprintf(&b, "✅ Active: %d\n", active)
	b.WriteString("\nThanks for being with us! 🙏")
	return b.String()
}

func formatPriceAlert(item catalog.Item, oldPrice, newPrice float64) string {
	change := newPrice - oldPrice
	pct := 0.0
	if oldPrice != 0 {
		pct = change / oldPrice * 100
	}
	direction := "up"
	arrow := "📈"
	if change < 0 {
		direction = "down"
		arrow = "📉"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Price %s alert</b>\n\n", direction)
	fmt.Fprintf(&b, "📦 <b>%s</b>\n", escapeHTML(item.Title))
	fmt.Fprintf(&b, "%s %.2f → <b>%.2f</b> (%+.1f%%)\n", arrow, oldPrice, newPrice, pct)
	if change < 0 {
		b.WriteString("\n🎉 Good time to buy!")
	}
	return b.String()
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func escapeHTML(s string) string { return htmlEscaper.Replace(s) }
