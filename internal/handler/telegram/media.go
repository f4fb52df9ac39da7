package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/zhouzirui/gptbot/internal/service/speech"
	"github.com/zhouzirui/gptbot/internal/service/vision"
)

const (
	maxVoiceBytes = 20 * 1024 * 1024

	voiceNotRecognized = "Не удалось распознать голосовое сообщение."
	defaultPhotoPrompt = "Что изображено на этой картинке?"
)

// photoDataURL fetches the largest photo size and encodes it as a data URL.
func (b *Bot) photoDataURL(ctx context.Context, photos []tgbotapi.PhotoSize) (string, error) {
	if b.vision == nil || len(photos) == 0 {
		return "", vision.ErrFetchFailed
	}

	largest := photos[0]
	for _, p := range photos[1:] {
		if p.Width*p.Height > largest.Width*largest.Height {
			largest = p
		}
	}

	url, err := b.api.GetFileDirectURL(largest.FileID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", vision.ErrFetchFailed, err)
	}
	return b.vision.DataURL(ctx, url)
}

// recognizeVoice downloads a voice note and transcribes it.
func (b *Bot) recognizeVoice(ctx context.Context, voice *tgbotapi.Voice) (string, error) {
	if b.speech == nil {
		return "", speech.ErrDisabled
	}

	audio, err := b.download(ctx, voice.FileID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", speech.ErrNotRecognized, err)
	}
	return b.speech.Recognize(ctx, audio)
}

// transcribe turns a voice update into text, replying with the failure text when it cannot.
func (b *Bot) transcribe(ctx context.Context, in *inbound) (string, bool) {
	stop := b.keepTyping(ctx, in.chatID)
	text, err := b.recognizeVoice(ctx, in.voice)
	stop()

	if err != nil {
		logger := b.logger.WithError(err).WithField("chat_id", in.chatID)
		if errors.Is(err, speech.ErrDisabled) {
			logger.Debug("voice ignored, speech disabled")
		} else {
			logger.Warn("voice recognition failed")
		}
		b.sender.Text(in.chatID, voiceNotRecognized, nil)
		return "", false
	}
	return text, true
}

// replyVoice 合成语音回复，失败时返回 false 由调用方改发文字。
func (b *Bot) replyVoice(ctx context.Context, chatID int64, text string) bool {
	if b.speech == nil {
		return false
	}

	ogg, err := b.speech.Synthesize(ctx, plainText(text))
	if err != nil {
		b.logger.WithError(err).WithField("chat_id", chatID).Warn("voice synthesis failed, sending text")
		return false
	}
	if err := b.sender.Voice(chatID, ogg); err != nil {
		b.logger.WithError(err).WithField("chat_id", chatID).Warn("send voice failed, sending text")
		return false
	}
	return true
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.files.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxVoiceBytes))
}
