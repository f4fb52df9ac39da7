package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/zhouzirui/gptbot/internal/model/session"
)

var botCommands = []tgbotapi.BotCommand{
	{Command: "start", Description: "главное меню бота"},
	{Command: "gpt", Description: "задать вопрос чату GPT 🧠"},
	{Command: "talk", Description: "переписка со звездами 😈"},
	{Command: "fact", Description: "рандомный факт"},
	{Command: "quiz", Description: "проверь свои знания 🎯"},
	{Command: "business", Description: "генератор идей для бизнеса 💡"},
}

func (b *Bot) handleStart(_ context.Context, in *inbound) {
	b.showMainMenu(in.chatID)
}

// showMainMenu resets the chat to the main mode and shows the menu.
func (b *Bot) showMainMenu(chatID int64) {
	b.sessions.SetMode(chatID, session.ModeMain)
	b.sessions.Clear(chatID)

	b.sender.Photo(chatID, "main")
	b.sender.Text(chatID, b.message("main"), mainMenuKeyboard())
	b.sender.SetCommands(botCommands)
}

// backToMainMenu is the feature-local "🏠" button.
func (b *Bot) backToMainMenu(chatID int64) {
	b.sender.Text(chatID, "🏠 <b>Возвращаемся в главное меню...</b>", nil)
	b.showMainMenu(chatID)
}
