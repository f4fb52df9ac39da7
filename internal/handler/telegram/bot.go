// Package telegram runs the bot: it receives updates, routes them by chat mode and
// drives the feature handlers.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/gptbot/internal/config"
	"github.com/zhouzirui/gptbot/internal/model/prompt"
	"github.com/zhouzirui/gptbot/internal/model/session"
	"github.com/zhouzirui/gptbot/internal/router"
	"github.com/zhouzirui/gptbot/internal/service/ai"
	"github.com/zhouzirui/gptbot/internal/service/search"
	sessionservice "github.com/zhouzirui/gptbot/internal/service/session"
)

const (
	tooManyRequests = "Слишком много запросов"

	limiterPruneInterval = 10 * time.Minute
)

// API is the subset of *tgbotapi.BotAPI the bot needs.
type API interface {
	Messenger
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// ImageFetcher turns an image URL into a data URL.
type ImageFetcher interface {
	DataURL(ctx context.Context, url string) (string, error)
}

// VoicePipeline converts voice notes to text and text to OGG voice notes.
type VoicePipeline interface {
	Recognize(ctx context.Context, audio []byte) (string, error)
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Deps 是机器人依赖的服务。Search、Vision、Speech 可为 nil。
type Deps struct {
	Prompts  prompt.Store
	Sessions *sessionservice.Store
	AI       *ai.Client
	Search   *search.Client
	Vision   ImageFetcher
	Speech   VoicePipeline
}

// Bot ties together the Telegram API, the session store and the feature handlers.
type Bot struct {
	api      API
	sender   *Sender
	prompts  prompt.Store
	sessions *sessionservice.Store
	ai       *ai.Client
	search   *search.Client
	vision   ImageFetcher
	speech   VoicePipeline

	locks   *ChatLocks
	limiter *ChatLimiter
	files   *http.Client
	wg      sync.WaitGroup
	logger  *logrus.Entry
}

func NewBot(api API, deps Deps, tg config.TelegramConfig, limits config.RateLimitConfig) *Bot {
	return &Bot{
		api:      api,
		sender:   NewSender(api, tg.AssetsDir),
		prompts:  deps.Prompts,
		sessions: deps.Sessions,
		ai:       deps.AI,
		search:   deps.Search,
		vision:   deps.Vision,
		speech:   deps.Speech,
		locks:    NewChatLocks(),
		limiter:  NewChatLimiter(limits.PerSecond, limits.Burst),
		files:    &http.Client{Timeout: 30 * time.Second},
		logger:   logrus.WithField("component", "telegram"),
	}
}

// Run starts the update loop. It blocks until ctx is cancelled and in-flight updates finish.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("telegram update loop started")

	prune := time.NewTicker(limiterPruneInterval)
	defer prune.Stop()

	for {
		select {
		case now := <-prune.C:
			if removed := b.limiter.Prune(now); removed > 0 {
				b.logger.WithField("removed", removed).Debug("pruned idle rate limiters")
			}
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			b.logger.Info("telegram update loop stopped")
			return
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.Handle(ctx, update)
			}()
		}
	}
}

// inbound is the normalized form of one update.
type inbound struct {
	chatID     int64
	messageID  int
	callbackID string
	update     router.Update
	text       string
	photos     []tgbotapi.PhotoSize
	voice      *tgbotapi.Voice
}

func parseUpdate(update tgbotapi.Update) (*inbound, bool) {
	if cb := update.CallbackQuery; cb != nil {
		if cb.Message == nil || cb.Message.Chat == nil {
			return nil, false
		}
		return &inbound{
			chatID:     cb.Message.Chat.ID,
			messageID:  cb.Message.MessageID,
			callbackID: cb.ID,
			update:     router.Update{Kind: router.KindCallback, Payload: cb.Data},
		}, true
	}

	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return nil, false
	}
	in := &inbound{chatID: msg.Chat.ID, messageID: msg.MessageID}

	switch {
	case msg.IsCommand():
		in.update = router.Update{Kind: router.KindCommand, Payload: msg.Command()}
	case msg.Voice != nil:
		in.update = router.Update{Kind: router.KindVoice}
		in.voice = msg.Voice
	case len(msg.Photo) > 0:
		in.update = router.Update{Kind: router.KindPhoto}
		in.photos = msg.Photo
		in.text = msg.Caption
	case msg.Text != "":
		in.update = router.Update{Kind: router.KindText}
		in.text = msg.Text
	default:
		return nil, false
	}
	return in, true
}

// Handle processes a single update synchronously. Updates of one chat never interleave.
func (b *Bot) Handle(ctx context.Context, update tgbotapi.Update) {
	in, ok := parseUpdate(update)
	if !ok {
		return
	}

	if !b.limiter.Allow(in.chatID) {
		b.logger.WithField("chat_id", in.chatID).Warn("rate limited")
		if in.callbackID != "" {
			b.sender.AnswerCallback(in.callbackID, tooManyRequests)
		}
		return
	}

	unlock := b.locks.Lock(in.chatID)
	defer unlock()

	mode := b.sessions.Mode(in.chatID)
	target := router.Route(mode, in.update)
	logger := b.logger.WithFields(logrus.Fields{
		"chat_id": in.chatID,
		"mode":    mode,
		"kind":    in.update.Kind,
		"target":  target,
	})

	if in.callbackID != "" {
		b.sender.AnswerCallback(in.callbackID, "")
	}
	if target == router.None {
		logger.Debug("update dropped")
		return
	}
	logger.Debug("handling update")

	switch target {
	case router.Start:
		b.handleStart(ctx, in)
	case router.GPT:
		b.handleGPT(ctx, in)
	case router.Talk:
		b.handleTalk(ctx, in)
	case router.Quiz:
		b.handleQuiz(ctx, in)
	case router.Business:
		b.handleBusiness(ctx, in)
	case router.Fact:
		b.handleFact(ctx, in)
	}
}

// exchange 执行一次事务性对话：快照、请求、成功后提交。
// augment 为 true 时在用户消息前注入临时的搜索结果系统消息。
func (b *Bot) exchange(ctx context.Context, chatID int64, user session.Turn, augment bool) ai.Result {
	snap := b.sessions.Snapshot(chatID)

	transcript := snap.Transcript
	if augment {
		if extra, ok := b.search.Context(ctx, user.Content); ok {
			transcript = append(transcript, session.Turn{Role: session.RoleSystem, Content: extra})
		}
	}
	transcript = append(transcript, user)

	res := b.ai.Respond(ctx, transcript)
	if !res.OK() {
		return res
	}

	reply := session.Turn{Role: session.RoleAssistant, Content: res.Content}
	if err := b.sessions.Commit(chatID, snap.Generation, user, reply); err != nil {
		if errors.Is(err, sessionservice.ErrStaleTranscript) {
			b.logger.WithField("chat_id", chatID).Warn("transcript reset during request, reply not recorded")
		} else {
			b.logger.WithError(err).WithField("chat_id", chatID).Error("commit failed")
		}
	}
	return res
}

// keepTyping refreshes the typing indicator until the returned stop is called.
func (b *Bot) keepTyping(ctx context.Context, chatID int64) func() {
	ctx, cancel := context.WithCancel(ctx)
	b.sender.Typing(chatID)

	go func() {
		ticker := time.NewTicker(4 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.sender.Typing(chatID)
			}
		}
	}()
	return cancel
}

func (b *Bot) message(key string) string {
	text, err := b.prompts.Message(key)
	if err != nil {
		b.logger.WithError(err).Warn("message missing")
		return ""
	}
	return text
}

func (b *Bot) prompt(key string) string {
	text, err := b.prompts.Prompt(key)
	if err != nil {
		b.logger.WithError(err).Error("prompt missing")
		return ""
	}
	return text
}
