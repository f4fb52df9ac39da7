package telegram

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/zhouzirui/gptbot/internal/model/session"
	"github.com/zhouzirui/gptbot/internal/router"
)

const quizChooseTopic = "Сначала выберите тему квиза:"

func (b *Bot) handleQuiz(ctx context.Context, in *inbound) {
	switch in.update.Kind {
	case router.KindCommand:
		b.enterQuiz(in.chatID)
	case router.KindCallback:
		b.quizCallback(ctx, in)
	case router.KindText:
		b.quizAnswer(ctx, in.chatID, in.text)
	case router.KindVoice:
		if text, ok := b.transcribe(ctx, in); ok {
			b.quizAnswer(ctx, in.chatID, text)
		}
	}
}

func (b *Bot) enterQuiz(chatID int64) {
	b.sessions.SetMode(chatID, session.ModeQuiz)
	b.sessions.ResetScore(chatID)
	b.sessions.SetTopic(chatID, "")
	b.sessions.Clear(chatID)

	b.sender.Photo(chatID, "quiz")
	b.sender.Text(chatID, b.message("quiz"), quizTopicsKeyboard(b.prompts.Catalogue().QuizTopics))
}

func (b *Bot) quizCallback(ctx context.Context, in *inbound) {
	data := in.update.Payload
	switch {
	case data == cbQuizInterface:
		b.enterQuiz(in.chatID)
	case strings.HasPrefix(data, cbQuizTopic):
		id := strings.TrimPrefix(data, cbQuizTopic)
		if _, ok := b.prompts.FindQuizTopic(id); !ok {
			b.logger.WithField("topic", id).Warn("unknown quiz topic")
			return
		}
		b.sessions.SetPrompt(in.chatID, b.prompt("quiz"))
		b.sessions.SetTopic(in.chatID, id)
		b.sessions.SetMode(in.chatID, session.ModeQuiz)
		b.askQuestion(ctx, in.chatID)
	case data == cbQuizMore:
		b.askQuestion(ctx, in.chatID)
	case data == cbQuizChangeTopic:
		b.sender.Text(in.chatID, quizChooseTopic, quizTopicsKeyboard(b.prompts.Catalogue().QuizTopics))
	case data == cbQuizMainMenu:
		b.backToMainMenu(in.chatID)
	default:
		b.logger.WithField("data", data).Warn("unknown quiz callback")
	}
}

func (b *Bot) askQuestion(ctx context.Context, chatID int64) {
	snap := b.sessions.Snapshot(chatID)
	topic, ok := b.prompts.FindQuizTopic(snap.Topic)
	if !ok || len(snap.Transcript) == 0 {
		b.sender.Text(chatID, quizChooseTopic, quizTopicsKeyboard(b.prompts.Catalogue().QuizTopics))
		return
	}

	stop := b.keepTyping(ctx, chatID)
	res := b.exchange(ctx, chatID, session.Turn{
		Role:    session.RoleUser,
		Content: fmt.Sprintf("Тема: %s. Задай новый вопрос.", topic.Label),
	}, false)
	stop()

	if !res.OK() {
		b.sender.Text(chatID, res.Text(), quizNextKeyboard())
		return
	}
	b.sender.Text(chatID, fmt.Sprintf("❓ <b>Вопрос по теме «%s»:</b>\n\n%s", topic.Label, res.Content), nil)
}

func (b *Bot) quizAnswer(ctx context.Context, chatID int64, answer string) {
	snap := b.sessions.Snapshot(chatID)
	if snap.Topic == "" || len(snap.Transcript) == 0 {
		b.sender.Text(chatID, quizChooseTopic, quizTopicsKeyboard(b.prompts.Catalogue().QuizTopics))
		return
	}

	stop := b.keepTyping(ctx, chatID)
	res := b.exchange(ctx, chatID, session.Turn{Role: session.RoleUser, Content: answer}, false)
	stop()

	if !res.OK() {
		b.sender.Text(chatID, res.Text(), quizNextKeyboard())
		return
	}

	score := b.sessions.RecordAnswer(chatID, isCorrect(res.Content))
	text := fmt.Sprintf("%s\n\n📊 <b>Счёт:</b> %d из %d", res.Content, score.Correct, score.Total)
	b.sender.Text(chatID, text, quizNextKeyboard())
}

// isCorrect 判断评分结果：回复以"Правильно"开头（忽略前导符号与标签）。
func isCorrect(verdict string) bool {
	plain := strings.TrimLeftFunc(plainText(verdict), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	return strings.HasPrefix(plain, "Правильно")
}
