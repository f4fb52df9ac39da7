package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/zhouzirui/gptbot/internal/model/session"
	"github.com/zhouzirui/gptbot/internal/router"
	"github.com/zhouzirui/gptbot/internal/service/ai"
	"github.com/zhouzirui/gptbot/internal/service/vision"
)

const (
	gptThinking    = "💭 <i>Думаю над ответом</i>"
	gptChooseTopic = "🎯 <b>Выберите тему для общения:</b>\n\n💡 <i>Каждая тема имеет свои особенности и специализацию</i>"
	gptAskText     = "💭 <b>Задайте ваш вопрос:</b>\n\nЯ готов помочь вам с любым вопросом по выбранной теме."
	gptRetryText   = "🔄 <b>Попробуйте задать вопрос еще раз:</b>\n\nЯ постараюсь дать вам максимально полезный ответ."
)

func (b *Bot) handleGPT(ctx context.Context, in *inbound) {
	switch in.update.Kind {
	case router.KindCommand:
		b.enterGPT(in.chatID)
	case router.KindCallback:
		b.gptCallback(in)
	case router.KindText:
		b.gptAnswer(ctx, in.chatID, session.Turn{Role: session.RoleUser, Content: in.text}, false)
	case router.KindVoice:
		text, ok := b.transcribe(ctx, in)
		if !ok {
			return
		}
		b.gptAnswer(ctx, in.chatID, session.Turn{Role: session.RoleUser, Content: text}, true)
	case router.KindPhoto:
		b.gptPhoto(ctx, in)
	}
}

func (b *Bot) enterGPT(chatID int64) {
	b.sessions.SetMode(chatID, session.ModeGPT)
	b.sessions.SetPrompt(chatID, b.prompt("gpt"))
	b.sessions.SetTopic(chatID, "")

	b.sender.Photo(chatID, "gpt")
	b.sender.Text(chatID, b.message("gpt"), nil)
	b.sender.Text(chatID, gptChooseTopic, gptTopicsKeyboard(b.prompts.Catalogue().GPTTopics))
}

func (b *Bot) gptCallback(in *inbound) {
	data := in.update.Payload
	switch {
	case data == cbGPTInterface:
		b.enterGPT(in.chatID)
	case strings.HasPrefix(data, cbGPTTopic):
		b.selectGPTTopic(in.chatID, strings.TrimPrefix(data, cbGPTTopic))
	case data == cbGPTChangeTopic:
		b.sender.Photo(in.chatID, "gpt")
		b.sender.Text(in.chatID, gptChooseTopic, gptTopicsKeyboard(b.prompts.Catalogue().GPTTopics))
	case data == cbGPTAsk:
		b.sender.Text(in.chatID, gptAskText, nil)
	case data == cbGPTRetry:
		b.sender.Text(in.chatID, gptRetryText, nil)
	case data == cbGPTMainMenu:
		b.backToMainMenu(in.chatID)
	default:
		b.logger.WithField("data", data).Warn("unknown gpt callback")
	}
}

func (b *Bot) selectGPTTopic(chatID int64, id string) {
	topic, ok := b.prompts.FindGPTTopic(id)
	if !ok {
		b.logger.WithField("topic", id).Warn("unknown gpt topic")
		b.sender.Text(chatID, "😔 <b>Произошла ошибка при выборе темы</b>\nПожалуйста, попробуйте еще раз", nil)
		return
	}

	system := fmt.Sprintf("%s\n\nТема разговора: %s. %s", b.prompt("gpt"), topic.Label, topic.Description)
	b.sessions.SetPrompt(chatID, system)
	b.sessions.SetTopic(chatID, topic.ID)
	b.sessions.SetMode(chatID, session.ModeGPT)

	text := fmt.Sprintf("✅ <b>Вы выбрали тему: %s</b>\n\n<i>%s</i>\n\n"+
		"💡 Теперь вы можете задавать вопросы. Я постараюсь дать вам подробный и полезный ответ.\n\n"+
		"🔙 Для возврата в меню используйте кнопку ниже:", topic.Label, topic.Description)
	b.sender.Text(chatID, text, gptAnswerKeyboard("❓ Задать вопрос"))
}

func (b *Bot) gptPhoto(ctx context.Context, in *inbound) {
	dataURL, err := b.photoDataURL(ctx, in.photos)
	if err != nil {
		b.logger.WithError(err).WithField("chat_id", in.chatID).Warn("photo fetch failed")
		b.sender.Text(in.chatID, vision.FailureText, nil)
		return
	}

	caption := strings.TrimSpace(in.text)
	if caption == "" {
		caption = defaultPhotoPrompt
	}
	b.gptAnswer(ctx, in.chatID, session.Turn{Role: session.RoleUser, Content: caption, ImageURL: dataURL}, false)
}

// gptAnswer runs one GPT turn; viaVoice adds a voice copy of the answer.
func (b *Bot) gptAnswer(ctx context.Context, chatID int64, user session.Turn, viaVoice bool) {
	status := b.sender.Text(chatID, gptThinking, nil)
	res := b.exchange(ctx, chatID, user, user.ImageURL == "")
	b.sender.Delete(chatID, status)

	if !res.OK() {
		if user.ImageURL != "" {
			b.sender.Text(chatID, vision.FailureText, gptRetryKeyboard())
			return
		}
		b.sender.Text(chatID, "😔 <b>Произошла ошибка при обработке запроса</b>\n\n"+
			res.Text()+"\nПожалуйста, попробуйте еще раз или вернитесь в меню.", gptRetryKeyboard())
		return
	}

	if viaVoice {
		b.replyVoice(ctx, chatID, res.Content)
	}
	b.sender.Text(chatID, formatGPTAnswer(res), gptAnswerKeyboard("❓ Задать еще вопрос"))
}

func formatGPTAnswer(res ai.Result) string {
	return "🤖 <b>Ответ GPT:</b>\n\n" + res.Text() +
		"\n\n💡 <i>Вы можете задать новый вопрос, сменить тему или вернуться в меню</i>"
}
