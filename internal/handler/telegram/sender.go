package telegram

import (
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

const maxMessageLength = 4096

var tagPattern = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)

// Messenger is the part of the Bot API used to talk to chats.
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Sender sends HTML messages with splitting and a plain-text fallback.
type Sender struct {
	api       Messenger
	assetsDir string
	logger    *logrus.Entry
}

func NewSender(api Messenger, assetsDir string) *Sender {
	return &Sender{
		api:       api,
		assetsDir: assetsDir,
		logger:    logrus.WithField("component", "telegram"),
	}
}

// Text sends text in HTML mode and returns the id of the last chunk sent.
// The keyboard, if any, is attached to the last chunk.
func (s *Sender) Text(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) int {
	chunks := splitMessage(text, maxMessageLength)

	lastID := 0
	for i, chunk := range chunks {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = tgbotapi.ModeHTML
		if keyboard != nil && i == len(chunks)-1 {
			msg.ReplyMarkup = *keyboard
		}

		sent, err := s.api.Send(msg)
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{"chat_id": chatID, "chunk": i}).
				Warn("HTML send failed, falling back to plain text")
			msg.Text = plainText(chunk)
			msg.ParseMode = ""
			sent, err = s.api.Send(msg)
			if err != nil {
				s.logger.WithError(err).WithField("chat_id", chatID).Error("plain text send also failed")
				continue
			}
		}
		lastID = sent.MessageID
	}
	return lastID
}

// Edit replaces the text and keyboard of an existing message.
func (s *Sender) Edit(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	var edit tgbotapi.EditMessageTextConfig
	if keyboard != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *keyboard)
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	edit.ParseMode = tgbotapi.ModeHTML

	_, err := s.api.Send(edit)
	return err
}

// Delete removes a message. Failures are only logged.
func (s *Sender) Delete(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if _, err := s.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		s.logger.WithError(err).WithField("chat_id", chatID).Warn("delete message failed")
	}
}

// AnswerCallback acknowledges a callback query with optional text.
func (s *Sender) AnswerCallback(callbackID, text string) {
	if callbackID == "" {
		return
	}
	if _, err := s.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		s.logger.WithError(err).Warn("answer callback failed")
	}
}

// Typing shows the "typing..." indicator once.
func (s *Sender) Typing(chatID int64) {
	if _, err := s.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		s.logger.WithError(err).WithField("chat_id", chatID).Debug("chat action failed")
	}
}

// Photo sends <assetsDir>/<key>.jpg when it exists. Missing assets are skipped silently.
func (s *Sender) Photo(chatID int64, key string) {
	if s.assetsDir == "" {
		return
	}
	path := filepath.Join(s.assetsDir, key+".jpg")
	if _, err := os.Stat(path); err != nil {
		s.logger.WithField("asset", key).Debug("photo asset not found")
		return
	}

	if _, err := s.api.Send(tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(path))); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"chat_id": chatID, "asset": key}).Warn("send photo failed")
	}
}

// Voice sends an OGG voice note.
func (s *Sender) Voice(chatID int64, ogg []byte) error {
	_, err := s.api.Send(tgbotapi.NewVoice(chatID, tgbotapi.FileBytes{Name: "reply.ogg", Bytes: ogg}))
	return err
}

// SetCommands registers the command menu shown by Telegram clients.
func (s *Sender) SetCommands(commands []tgbotapi.BotCommand) {
	if _, err := s.api.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		s.logger.WithError(err).Warn("set bot commands failed")
	}
}

// splitMessage splits text into chunks of at most maxLen runes.
// Prefers splitting at newlines, then spaces, then hard breaks.
func splitMessage(text string, maxLen int) []string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= maxLen {
			chunks = append(chunks, string(runes))
			break
		}

		splitAt := maxLen
		chunk := string(runes[:maxLen])
		if idx := strings.LastIndex(chunk, "\n"); idx > 0 {
			splitAt = len([]rune(chunk[:idx])) + 1
		} else if idx := strings.LastIndex(chunk, " "); idx > 0 {
			splitAt = len([]rune(chunk[:idx])) + 1
		}

		chunks = append(chunks, string(runes[:splitAt]))
		runes = runes[splitAt:]
	}
	return chunks
}

// plainText strips HTML tags and entities for the fallback send.
func plainText(s string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(s, ""))
}
