// internal/infra/telegram/client.go
package telegram

import (
	"gopkg.in/telebot.v3"
)

// maxMessageLength is Telegram's limit for a text message, in characters.
const maxMessageLength = 4096

// TelebotAdapter delivers ops messages and alerts through a telebot.Bot.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends text to a chat. Alerts can carry long error chains, so
// text over the Telegram limit is cut short rather than rejected.
func (tba *TelebotAdapter) SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{DisableWebPagePreview: true}
	}

	_, err := tba.bot.Send(telebot.ChatID(recipientChatID), truncateMessage(text), options)
	return err
}

func truncateMessage(text string) string {
	runes := []rune(text)
	if len(runes) <= maxMessageLength {
		return text
	}
	const marker = "\n[truncated]"
	return string(runes[:maxMessageLength-len([]rune(marker))]) + marker
}
