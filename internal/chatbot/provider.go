package chatbot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Provider defines the contract for Telegram API operations. The bot service
// depends on this interface only, so tests substitute a recording fake.
type Provider interface {
	// SendMessage sends a plain text message to the specified chat
	SendMessage(chatID int64, text string) error

	// SendMessageWithKeyboard sends a message with an inline keyboard
	SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error

	// EditMessage replaces the text of a previously sent message
	EditMessage(chatID int64, messageID int, text string) error

	// AnswerCallback acknowledges an inline button press
	AnswerCallback(callbackID string) error

	// UpdatesChannel opens the long-poll update stream
	UpdatesChannel(timeoutSeconds int) tgbotapi.UpdatesChannel

	// StopReceivingUpdates closes the long-poll stream
	StopReceivingUpdates()

	// GetMe returns information about the bot
	GetMe() (*tgbotapi.User, error)
}
