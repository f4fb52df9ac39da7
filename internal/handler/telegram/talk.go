package telegram

import (
	"context"
	"strings"

	"github.com/zhouzirui/gptbot/internal/model/prompt"
	"github.com/zhouzirui/gptbot/internal/model/session"
	"github.com/zhouzirui/gptbot/internal/router"
)

const (
	talkChosen      = "отличный выбор! Можете начать общаться!"
	talkChooseFirst = "Сначала выберите, с кем хотите пообщаться:"
)

func (b *Bot) handleTalk(ctx context.Context, in *inbound) {
	switch in.update.Kind {
	case router.KindCommand:
		b.enterTalk(in.chatID)
	case router.KindCallback:
		if in.update.Payload == cbTalkInterface {
			b.enterTalk(in.chatID)
			return
		}
		b.selectPersona(in.chatID, in.update.Payload)
	case router.KindText:
		b.talkReply(ctx, in.chatID, in.text, false)
	case router.KindVoice:
		text, ok := b.transcribe(ctx, in)
		if !ok {
			return
		}
		b.talkReply(ctx, in.chatID, text, true)
	}
}

func (b *Bot) enterTalk(chatID int64) {
	b.sessions.SetMode(chatID, session.ModeTalk)
	b.sessions.Clear(chatID)

	b.sender.Photo(chatID, "talk")
	b.sender.Text(chatID, b.message("talk"), personasKeyboard(b.prompts.Catalogue().Personas))
}

func (b *Bot) selectPersona(chatID int64, data string) {
	persona, ok := b.prompts.FindPersona(strings.TrimPrefix(data, "talk_"))
	if !ok {
		b.logger.WithField("data", data).Warn("unknown persona")
		return
	}

	system, err := b.prompts.Prompt(persona.Prompt)
	if err != nil {
		b.logger.WithError(err).WithField("persona", persona.ID).Error("persona prompt missing")
		return
	}

	b.sender.Photo(chatID, persona.CallbackData())
	b.sender.Text(chatID, talkChosen, nil)
	b.sessions.SetPrompt(chatID, system)
	b.sessions.SetMode(chatID, session.TalkMode(persona.ID))
}

func (b *Bot) talkReply(ctx context.Context, chatID int64, text string, viaVoice bool) {
	mode := b.sessions.Mode(chatID)
	if _, ok := b.currentPersona(mode); !ok {
		b.sender.Text(chatID, talkChooseFirst, personasKeyboard(b.prompts.Catalogue().Personas))
		return
	}

	stop := b.keepTyping(ctx, chatID)
	res := b.exchange(ctx, chatID, session.Turn{Role: session.RoleUser, Content: text}, false)
	stop()

	if res.OK() && viaVoice && b.replyVoice(ctx, chatID, res.Content) {
		return
	}
	b.sender.Text(chatID, res.Text(), nil)
}

func (b *Bot) currentPersona(mode session.Mode) (prompt.Persona, bool) {
	id := mode.Persona()
	if id == "" {
		return prompt.Persona{}, false
	}
	return b.prompts.FindPersona(id)
}
