package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mmeshcher/otp-rental-bot/internal/model"
	"github.com/mmeshcher/otp-rental-bot/internal/validation"
)

func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonOKVIP1),
			tgbotapi.NewKeyboardButton(buttonOKVIP2),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonOrders),
			tgbotapi.NewKeyboardButton(buttonHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func networkKeyboard(serviceKey string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(model.Networks))
	for _, n := range model.Networks {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(n.Label, validation.RentCallbackData(serviceKey, n.Code)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
