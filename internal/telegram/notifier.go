// Package telegram sends operational reports to an admin chat.
package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"meal-planner/internal/apperr"
	"meal-planner/internal/config"
	"meal-planner/internal/metrics"
	"meal-planner/internal/rollover"
)

// sender is the part of tgbotapi.BotAPI the notifier needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier posts Markdown messages to the admin chat.
type Notifier struct {
	api    sender
	chatID int64
}

// NewNotifier authorizes the bot and returns a Notifier for the admin chat.
func NewNotifier(cfg config.TelegramConfig) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	return &Notifier{api: api, chatID: cfg.AdminChatID}, nil
}

// NotifyRollover reports the outcome of a scheduled run.
func (n *Notifier) NotifyRollover(_ context.Context, report rollover.Report, runErr error) error {
	return n.send(formatRolloverReport(report, runErr))
}

// NotifyUsage sends the usage and health report.
func (n *Notifier) NotifyUsage(_ context.Context, usage []metrics.DailyUsage, health metrics.SysHealth) error {
	return n.send(FormatUsageReport(usage, health))
}

func (n *Notifier) send(text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

func formatRolloverReport(r rollover.Report, runErr error) string {
	var sb strings.Builder
	if runErr != nil {
		fmt.Fprintf(&sb, "❌ *Plan semanal %s*\n\n", r.WeekID)
		fmt.Fprintf(&sb, "%s\n", apperr.UserMessage(runErr))
		fmt.Fprintf(&sb, "`%s`\n", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, runErr.Error()))
		return sb.String()
	}

	fmt.Fprintf(&sb, "📅 *Plan semanal %s*\n\n", r.WeekID)
	fmt.Fprintf(&sb, "• Usuario: %s\n", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, r.UserID))
	fmt.Fprintf(&sb, "• Recetas nuevas: %d\n", r.RecipesCreated)
	if r.ImagesMissing > 0 {
		fmt.Fprintf(&sb, "• Sin imagen: %d\n", r.ImagesMissing)
	}
	if r.ShoppingItems > 0 {
		fmt.Fprintf(&sb, "🛒 Lista de la compra: %d productos", r.ShoppingItems)
		if r.Synced {
			sb.WriteString(" (sincronizada)")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatUsageReport renders token usage per day and runtime health.
func FormatUsageReport(usage []metrics.DailyUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		fmt.Fprintf(&sb, "• *%s*: %d tokens (%d execs)\n", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution)
	}

	sb.WriteString("\n🧠 *System Health*\n")
	fmt.Fprintf(&sb, "• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB)
	fmt.Fprintf(&sb, "• Goroutines: %d\n", health.Goroutines)
	fmt.Fprintf(&sb, "• Disk Data: %s\n", health.DataDiskSize)
	return sb.String()
}
