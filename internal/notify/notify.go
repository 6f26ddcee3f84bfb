// Package notify alerts city staff about new litter reports.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

type ReportNotice struct {
	ReportID     uuid.UUID
	Reporter     string
	MediaType    string
	MediaURL     string
	LocationName string
	Lat          *float64
	Long         *float64
	Description  string
}

type Notifier interface {
	ReportSubmitted(ctx context.Context, n ReportNotice)
}

type Nop struct{}

func (Nop) ReportSubmitted(context.Context, ReportNotice) {}

// Telegram posts to a single admin chat. Sends happen in the background and
// failures are only logged.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	slog.Info("telegram notifier authorized", "bot", api.Self.UserName)
	return &Telegram{api: api, chatID: chatID}, nil
}

func (t *Telegram) ReportSubmitted(ctx context.Context, n ReportNotice) {
	msg := tgbotapi.NewMessage(t.chatID, FormatReportNotice(n))
	go func() {
		if _, err := t.api.Send(msg); err != nil {
			slog.Warn("failed to send telegram notification", "report_id", n.ReportID.String(), "error", err)
		}
	}()
}

func FormatReportNotice(n ReportNotice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🗑 New %s report from %s\n", n.MediaType, n.Reporter)
	if n.LocationName != "" {
		fmt.Fprintf(&b, "📍 %s\n", n.LocationName)
	}
	if n.Lat != nil && n.Long != nil {
		fmt.Fprintf(&b, "https://maps.google.com/?q=%.6f,%.6f\n", *n.Lat, *n.Long)
	}
	if n.Description != "" {
		fmt.Fprintf(&b, "%s\n", n.Description)
	}
	fmt.Fprintf(&b, "%s\nID: %s", n.MediaURL, n.ReportID)
	return b.String()
}
