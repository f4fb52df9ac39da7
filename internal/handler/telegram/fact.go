package telegram

import (
	"context"

	"github.com/zhouzirui/gptbot/internal/model/session"
	"github.com/zhouzirui/gptbot/internal/router"
)

const factRequest = "Расскажи один интересный факт."

func (b *Bot) handleFact(ctx context.Context, in *inbound) {
	if in.update.Kind == router.KindCommand {
		b.sessions.SetMode(in.chatID, session.ModeFact)
		b.sender.Photo(in.chatID, "facts")
		b.sender.Text(in.chatID, b.randomFact(ctx, in.chatID), factKeyboard(true))
		return
	}

	withPhotoless := in.update.Payload != router.CallbackNewFactNoPhoto
	text := b.randomFact(ctx, in.chatID)
	kb := factKeyboard(withPhotoless)

	if err := b.sender.Edit(in.chatID, in.messageID, text, kb); err != nil {
		b.logger.WithError(err).WithField("chat_id", in.chatID).Warn("fact edit failed, sending new message")
		b.sender.Text(in.chatID, text, kb)
	}
}

// randomFact asks for a fact in a one-shot exchange; the chat transcript is not touched.
func (b *Bot) randomFact(ctx context.Context, chatID int64) string {
	stop := b.keepTyping(ctx, chatID)
	res := b.ai.Ask(ctx, b.prompt("fact"), factRequest)
	stop()

	return "📚 <b>Интересный факт:</b>\n\n" + res.Text()
}
