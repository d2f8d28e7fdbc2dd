// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"strings"

	"water_billing_service/internal/infra/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(
	b *telebot.Bot,
	cfg *config.AppConfig, // For AdminTelegramID
	baseLogger *logrus.Entry, // For contextual logging
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if senderID == cfg.AdminTelegramID {
			logCtx.Info("User identified as Admin")
			return c.Send("Hello. Billing alerts will arrive in this chat. Use /help for the list of commands.")
		}

		logCtx.Info("User is unknown")
		return c.Send("This bot is for the water billing operations team only.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if senderID != cfg.AdminTelegramID {
			logCtx.Info("User is unknown, sending restricted help.")
			return c.Send("No commands are available to you.")
		}
		return c.Send(adminHelpText(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}

func adminHelpText() string {
	var helpText strings.Builder
	helpText.WriteString("Operator commands:\n\n")
	helpText.WriteString("`/reconcile`\n - Check the provider for notifications still sending.\n\n")
	helpText.WriteString("`/licence_flags <licence-id>`\n - Show supplementary billing flags and two-part tariff years.\n\n")
	helpText.WriteString("`/event <event-id>`\n - Show the counts of a notice, with a button to refresh them.\n\n")
	helpText.WriteString("`/help`\n - Show this message.")
	return helpText.String()
}
