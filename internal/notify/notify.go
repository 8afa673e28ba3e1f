// Package notify announces official target locks to external channels.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"

	"trend-scout/internal/domain"
)

// Notifier announces a newly locked official target.
type Notifier interface {
	TargetLocked(ctx context.Context, t domain.OfficialTarget) error
}

// Nop discards announcements.
type Nop struct{}

// TargetLocked does nothing.
func (Nop) TargetLocked(context.Context, domain.OfficialTarget) error { return nil }

// Telegram posts announcements to one chat through a bot.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
	links  Links
}

// Links are optional social links appended to announcements.
type Links struct {
	Twitter  string
	Telegram string
	Website  string
}

// NewTelegram authenticates the bot token and returns a notifier for chatID.
// A nil client uses http.DefaultClient.
func NewTelegram(token string, chatID int64, links Links, client *http.Client) (*Telegram, error) {
	if client == nil {
		client = http.DefaultClient
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, client)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{api: api, chatID: chatID, links: links}, nil
}

// TargetLocked sends the announcement.
func (t *Telegram) TargetLocked(ctx context.Context, target domain.OfficialTarget) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, FormatLocked(target, t.links))
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// FormatLocked renders the announcement text.
func FormatLocked(target domain.OfficialTarget, links Links) string {
	tok := target.Token
	var b strings.Builder
	fmt.Fprintf(&b, "Official token locked: %s ($%s)\n", tok.Name, strings.TrimPrefix(tok.Symbol, "$"))
	fmt.Fprintf(&b, "Mint: %s\n", tok.ID)
	fmt.Fprintf(&b, "Source: %s\n", target.Provenance)
	if tok.MarketCap > 0 {
		fmt.Fprintf(&b, "Market cap: $%.0f\n", tok.MarketCap)
	}
	fmt.Fprintf(&b, "https://pump.fun/coin/%s", tok.ID)
	for _, l := range []string{links.Twitter, links.Telegram, links.Website} {
		if l != "" {
			b.WriteString("\n")
			b.WriteString(l)
		}
	}
	return b.String()
}
