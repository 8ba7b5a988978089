package chatbot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"lunchbot-api/internal/config"
)

// telegramProvider implements the Provider interface using the
// telegram-bot-api library over long polling.
type telegramProvider struct {
	bot    *tgbotapi.BotAPI
	logger *zap.Logger
	config config.ChatbotConfig
}

// NewTelegramProvider creates a new Provider instance and validates the
// token against the API.
func NewTelegramProvider(cfg config.ChatbotConfig, logger *zap.Logger) (Provider, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug

	if _, err := bot.GetMe(); err != nil {
		return nil, fmt.Errorf("failed to validate bot token: %w", err)
	}

	logger.Info("Telegram bot initialized successfully", zap.String("username", bot.Self.UserName))

	return &telegramProvider{
		bot:    bot,
		logger: logger,
		config: cfg,
	}, nil
}

// SendMessage sends a plain text message to the specified chat
func (p *telegramProvider) SendMessage(chatID int64, text string) error {
	p.logger.Debug("Sending message",
		zap.Int64("chatID", chatID),
		zap.Int("textLength", len(text)))

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := p.bot.Send(msg); err != nil {
		p.logger.Error("Failed to send message",
			zap.Int64("chatID", chatID),
			zap.Error(err))
		return NewSendError(chatID, err)
	}
	return nil
}

// SendMessageWithKeyboard sends a message with an inline keyboard
func (p *telegramProvider) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	p.logger.Debug("Sending message with keyboard",
		zap.Int64("chatID", chatID),
		zap.Int("keyboardRows", len(keyboard.InlineKeyboard)))

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = keyboard

	if _, err := p.bot.Send(msg); err != nil {
		p.logger.Error("Failed to send message with keyboard",
			zap.Int64("chatID", chatID),
			zap.Error(err))
		return NewSendError(chatID, err)
	}
	return nil
}

// EditMessage replaces the text of a previously sent message.
func (p *telegramProvider) EditMessage(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML

	if _, err := p.bot.Send(edit); err != nil {
		p.logger.Error("Failed to edit message",
			zap.Int64("chatID", chatID),
			zap.Int("messageID", messageID),
			zap.Error(err))
		return NewSendError(chatID, err)
	}
	return nil
}

// AnswerCallback acknowledges an inline button press so the client stops
// the loading spinner.
func (p *telegramProvider) AnswerCallback(callbackID string) error {
	if _, err := p.bot.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		p.logger.Error("Failed to answer callback", zap.Error(err))
		return err
	}
	return nil
}

// UpdatesChannel opens the long-poll update stream.
func (p *telegramProvider) UpdatesChannel(timeoutSeconds int) tgbotapi.UpdatesChannel {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = timeoutSeconds
	return p.bot.GetUpdatesChan(cfg)
}

// StopReceivingUpdates closes the long-poll stream.
func (p *telegramProvider) StopReceivingUpdates() {
	p.bot.StopReceivingUpdates()
}

// GetMe returns information about the bot
func (p *telegramProvider) GetMe() (*tgbotapi.User, error) {
	me, err := p.bot.GetMe()
	if err != nil {
		p.logger.Error("Failed to get bot information", zap.Error(err))
		return nil, fmt.Errorf("failed to get bot information: %w", err)
	}
	return &me, nil
}
