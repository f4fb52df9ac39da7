package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/zhouzirui/gptbot/internal/model/session"
	"github.com/zhouzirui/gptbot/internal/router"
)

const businessChooseCategory = "Сначала выберите категорию бизнеса:"

func (b *Bot) handleBusiness(ctx context.Context, in *inbound) {
	switch in.update.Kind {
	case router.KindCommand:
		b.enterBusiness(in.chatID)
	case router.KindCallback:
		b.businessCallback(ctx, in)
	case router.KindText:
		b.refineIdea(ctx, in.chatID, in.text)
	case router.KindVoice:
		if text, ok := b.transcribe(ctx, in); ok {
			b.refineIdea(ctx, in.chatID, text)
		}
	}
}

func (b *Bot) enterBusiness(chatID int64) {
	b.sessions.SetMode(chatID, session.ModeBusiness)
	b.sessions.SetTopic(chatID, "")
	b.sessions.Clear(chatID)

	b.sender.Photo(chatID, "business")
	b.sender.Text(chatID, b.message("business"), businessCategoriesKeyboard(b.prompts.Catalogue().BusinessCategories))
}

func (b *Bot) businessCallback(ctx context.Context, in *inbound) {
	data := in.update.Payload
	switch {
	case data == cbBusinessInterface:
		b.enterBusiness(in.chatID)
	case strings.HasPrefix(data, cbBusinessCategory):
		id := strings.TrimPrefix(data, cbBusinessCategory)
		category, ok := b.prompts.FindBusinessCategory(id)
		if !ok {
			b.logger.WithField("category", id).Warn("unknown business category")
			return
		}
		b.sessions.SetPrompt(in.chatID, b.prompt("business"))
		b.sessions.SetTopic(in.chatID, category.ID)
		b.sessions.SetMode(in.chatID, session.ModeBusiness)
		b.generateIdea(ctx, in.chatID, fmt.Sprintf("Предложи идею для бизнеса в категории «%s».", category.Label))
	case data == cbBusinessMore:
		b.generateIdea(ctx, in.chatID, "Предложи другую идею в этой же категории.")
	case data == cbBusinessChangeCategory:
		b.sender.Text(in.chatID, businessChooseCategory, businessCategoriesKeyboard(b.prompts.Catalogue().BusinessCategories))
	case data == cbBusinessMainMenu:
		b.backToMainMenu(in.chatID)
	default:
		b.logger.WithField("data", data).Warn("unknown business callback")
	}
}

func (b *Bot) generateIdea(ctx context.Context, chatID int64, request string) {
	if !b.hasCategory(chatID) {
		return
	}

	stop := b.keepTyping(ctx, chatID)
	res := b.exchange(ctx, chatID, session.Turn{Role: session.RoleUser, Content: request}, false)
	stop()

	if !res.OK() {
		b.sender.Text(chatID, res.Text(), businessIdeaKeyboard())
		return
	}
	b.sender.Text(chatID, "💡 <b>Идея для бизнеса:</b>\n\n"+res.Content, businessIdeaKeyboard())
}

func (b *Bot) refineIdea(ctx context.Context, chatID int64, question string) {
	if !b.hasCategory(chatID) {
		return
	}

	stop := b.keepTyping(ctx, chatID)
	res := b.exchange(ctx, chatID, session.Turn{Role: session.RoleUser, Content: question}, false)
	stop()

	b.sender.Text(chatID, res.Text(), businessIdeaKeyboard())
}

// hasCategory re-shows the category keyboard when no category was chosen yet.
func (b *Bot) hasCategory(chatID int64) bool {
	snap := b.sessions.Snapshot(chatID)
	if snap.Topic != "" && len(snap.Transcript) > 0 {
		return true
	}
	b.sender.Text(chatID, businessChooseCategory, businessCategoriesKeyboard(b.prompts.Catalogue().BusinessCategories))
	return false
}
