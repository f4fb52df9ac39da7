package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/zhouzirui/gptbot/internal/config"
	"github.com/zhouzirui/gptbot/internal/model/prompt"
	"github.com/zhouzirui/gptbot/internal/service/ai"
	sessionservice "github.com/zhouzirui/gptbot/internal/service/session"
)

// fakeAPI records everything the bot sends.
type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
	failHTML bool
	failEdit bool
	fileURL  string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)

	switch msg := c.(type) {
	case tgbotapi.MessageConfig:
		if f.failHTML && msg.ParseMode == tgbotapi.ModeHTML {
			return tgbotapi.Message{}, errors.New("Bad Request: can't parse entities")
		}
	case tgbotapi.EditMessageTextConfig:
		if f.failEdit {
			return tgbotapi.Message{}, errors.New("Bad Request: message to edit not found")
		}
	}

	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	if f.fileURL == "" {
		return "", errors.New("file not found")
	}
	return f.fileURL + "/" + fileID, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

// messages returns the successfully formatted text messages in send order.
func (f *fakeAPI) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg)
		}
	}
	return out
}

func (f *fakeAPI) lastMessage(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	msgs := f.messages()
	if len(msgs) == 0 {
		t.Fatal("no messages sent")
	}
	return msgs[len(msgs)-1]
}

func (f *fakeAPI) sentOfType(match func(tgbotapi.Chattable) bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.sent {
		if match(c) {
			n++
		}
	}
	return n
}

func (f *fakeAPI) callbackAnswers() []tgbotapi.CallbackConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.CallbackConfig
	for _, c := range f.requests {
		if cb, ok := c.(tgbotapi.CallbackConfig); ok {
			out = append(out, cb)
		}
	}
	return out
}

func (f *fakeAPI) deletes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.requests {
		if _, ok := c.(tgbotapi.DeleteMessageConfig); ok {
			n++
		}
	}
	return n
}

// fakeModel replies with a fixed string and records what it received.
type fakeModel struct {
	mu    sync.Mutex
	reply string
	err   error
	calls [][]*schema.Message
}

func (f *fakeModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, input)
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeModel) lastCall() []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

type fakeVision struct {
	dataURL string
	err     error
}

func (f fakeVision) DataURL(context.Context, string) (string, error) {
	return f.dataURL, f.err
}

type fakeSpeech struct {
	text    string
	recErr  error
	ogg     []byte
	synErr  error
	mu      sync.Mutex
	spoken  []string
	audioIn [][]byte
}

func (f *fakeSpeech) Recognize(_ context.Context, audio []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audioIn = append(f.audioIn, audio)
	return f.text, f.recErr
}

func (f *fakeSpeech) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	return f.ogg, f.synErr
}

type testBot struct {
	*Bot
	api    *fakeAPI
	store  *sessionservice.Store
	text   *fakeModel
	vision *fakeModel
}

func newTestBot(t *testing.T, text *fakeModel, deps Deps) *testBot {
	t.Helper()

	prompts, err := prompt.Default()
	if err != nil {
		t.Fatalf("prompt.Default err: %v", err)
	}
	visionModel := &fakeModel{reply: "На картинке кот."}
	client, err := ai.NewClientWithModels(context.Background(), text, visionModel, time.Second)
	if err != nil {
		t.Fatalf("NewClientWithModels err: %v", err)
	}

	deps.Prompts = prompts
	deps.Sessions = sessionservice.NewStore(time.Hour)
	deps.AI = client

	api := &fakeAPI{}
	bot := NewBot(api, deps, config.TelegramConfig{}, config.RateLimitConfig{})
	return &testBot{Bot: bot, api: api, store: deps.Sessions, text: text, vision: visionModel}
}

func chat(id int64) *tgbotapi.Chat {
	return &tgbotapi.Chat{ID: id, Type: "private"}
}

func commandUpdate(chatID int64, name string) tgbotapi.Update {
	text := "/" + name
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 10,
		Chat:      chat(chatID),
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{MessageID: 11, Chat: chat(chatID), Text: text}}
}

func callbackUpdate(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-" + data,
		Data:    data,
		Message: &tgbotapi.Message{MessageID: 42, Chat: chat(chatID)},
	}}
}

func voiceUpdate(chatID int64) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 12,
		Chat:      chat(chatID),
		Voice:     &tgbotapi.Voice{FileID: "voice-1", Duration: 2},
	}}
}

func photoUpdate(chatID int64, caption string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 13,
		Chat:      chat(chatID),
		Caption:   caption,
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", Width: 90, Height: 90},
			{FileID: "large", Width: 1280, Height: 960},
		},
	}}
}
