package chatbot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// KeyboardBuilder provides utilities for creating inline keyboards
type KeyboardBuilder struct{}

// NewKeyboardBuilder creates a new KeyboardBuilder instance
func NewKeyboardBuilder() *KeyboardBuilder {
	return &KeyboardBuilder{}
}

// BuildAttendancePrompt creates the morning Ha/Yo'q attendance keyboard.
// test routes the answers into the dry-run namespace.
func (kb *KeyboardBuilder) BuildAttendancePrompt(test bool) tgbotapi.InlineKeyboardMarkup {
	prefix := ""
	if test {
		prefix = CallbackTestPrefix
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Ha", prefix+CallbackAttendYes),
			tgbotapi.NewInlineKeyboardButtonData("Yo'q", prefix+CallbackAttendNo),
		),
	)
}

// BuildDishSelection creates one button per dish, an optional same-day
// cancel button while the cutoff is still open, and a back button.
func (kb *KeyboardBuilder) BuildDishSelection(dishes []string, cancellable, test bool) tgbotapi.InlineKeyboardMarkup {
	prefix := ""
	if test {
		prefix = CallbackTestPrefix
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, dish := range dishes {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(dish, prefix+CallbackDishPrefix+dish),
		))
	}
	if cancellable {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Tushlikni bekor qilish", prefix+CallbackCancelLunch),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔙 Ortga", prefix+CallbackCancelPicking),
	))

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// BuildNotifyConfirmation creates the Ha/Yo'q broadcast confirmation.
func (kb *KeyboardBuilder) BuildNotifyConfirmation() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Ha", CallbackNotifyConfirm),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yo'q", CallbackNotifyCancel),
		),
	)
}
