package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/zhouzirui/gptbot/internal/model/prompt"
	"github.com/zhouzirui/gptbot/internal/router"
)

// 回调数据。以功能前缀开头，由 router 分发。
const (
	cbGPTInterface   = "gpt_interface"
	cbGPTTopic       = "gpt_topic_"
	cbGPTAsk         = "gpt_ask_question"
	cbGPTChangeTopic = "gpt_change_topic"
	cbGPTRetry       = "gpt_retry"
	cbGPTMainMenu    = "gpt_main_menu"

	cbTalkInterface = "talk_interface"

	cbQuizInterface   = "quiz_interface"
	cbQuizTopic       = "quiz_topic_"
	cbQuizMore        = "quiz_more"
	cbQuizChangeTopic = "quiz_change_topic"
	cbQuizMainMenu    = "quiz_main_menu"

	cbBusinessInterface      = "business_interface"
	cbBusinessCategory       = "business_category_"
	cbBusinessMore           = "business_more"
	cbBusinessChangeCategory = "business_change_category"
	cbBusinessMainMenu       = "business_main_menu"
)

const backToMenuLabel = "🏠 Вернуться в меню"

func keyboard(rows ...[]tgbotapi.InlineKeyboardButton) *tgbotapi.InlineKeyboardMarkup {
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

func button(text, data string) []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(text, data))
}

// topicRows lays topics out two per row.
func topicRows(topics []prompt.Topic, prefix string) [][]tgbotapi.InlineKeyboardButton {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, (len(topics)+1)/2)
	for i := 0; i < len(topics); i += 2 {
		row := tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(topics[i].Title, prefix+topics[i].ID))
		if i+1 < len(topics) {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(topics[i+1].Title, prefix+topics[i+1].ID))
		}
		rows = append(rows, row)
	}
	return rows
}

func mainMenuKeyboard() *tgbotapi.InlineKeyboardMarkup {
	return keyboard(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🧠 Чат GPT", cbGPTInterface),
			tgbotapi.NewInlineKeyboardButtonData("😈 Звёзды", cbTalkInterface),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Квиз", cbQuizInterface),
			tgbotapi.NewInlineKeyboardButtonData("💡 Идеи", cbBusinessInterface),
		),
	)
}

func gptTopicsKeyboard(topics []prompt.Topic) *tgbotapi.InlineKeyboardMarkup {
	rows := topicRows(topics, cbGPTTopic)
	rows = append(rows, button(backToMenuLabel, cbGPTMainMenu))
	return keyboard(rows...)
}

func gptAnswerKeyboard(askLabel string) *tgbotapi.InlineKeyboardMarkup {
	return keyboard(
		button(askLabel, cbGPTAsk),
		button("🔄 Сменить тему", cbGPTChangeTopic),
		button(backToMenuLabel, cbGPTMainMenu),
	)
}

func gptRetryKeyboard() *tgbotapi.InlineKeyboardMarkup {
	return keyboard(
		button("🔄 Попробовать снова", cbGPTRetry),
		button(backToMenuLabel, cbGPTMainMenu),
	)
}

func personasKeyboard(personas []prompt.Persona) *tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(personas)+1)
	for _, p := range personas {
		rows = append(rows, button(p.Name+" · "+p.Title, p.CallbackData()))
	}
	rows = append(rows, button(backToMenuLabel, router.CallbackMainMenu))
	return keyboard(rows...)
}

func quizTopicsKeyboard(topics []prompt.Topic) *tgbotapi.InlineKeyboardMarkup {
	rows := topicRows(topics, cbQuizTopic)
	rows = append(rows, button(backToMenuLabel, cbQuizMainMenu))
	return keyboard(rows...)
}

func quizNextKeyboard() *tgbotapi.InlineKeyboardMarkup {
	return keyboard(
		button("➡️ Следующий вопрос", cbQuizMore),
		button("🔄 Сменить тему", cbQuizChangeTopic),
		button(backToMenuLabel, cbQuizMainMenu),
	)
}

func businessCategoriesKeyboard(categories []prompt.Topic) *tgbotapi.InlineKeyboardMarkup {
	rows := topicRows(categories, cbBusinessCategory)
	rows = append(rows, button(backToMenuLabel, cbBusinessMainMenu))
	return keyboard(rows...)
}

func businessIdeaKeyboard() *tgbotapi.InlineKeyboardMarkup {
	return keyboard(
		button("🎲 Другая идея", cbBusinessMore),
		button("🔄 Сменить категорию", cbBusinessChangeCategory),
		button(backToMenuLabel, cbBusinessMainMenu),
	)
}

func factKeyboard(withPhotoless bool) *tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{button("🎲 Еще факт", router.CallbackNewFact)}
	if withPhotoless {
		rows = append(rows, button("📚 Еще факт (без картинки)", router.CallbackNewFactNoPhoto))
	}
	return keyboard(rows...)
}
