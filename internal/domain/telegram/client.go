package telegram

import "gopkg.in/telebot.v3"

// Client defines an interface for sending operational messages via a Telegram bot.
// This keeps alerting and the ops commands independent of the bot library.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}
