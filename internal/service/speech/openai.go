package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// WhisperRecognizer 使用 OpenAI Whisper 进行识别。
type WhisperRecognizer struct {
	client   *openai.Client
	language string
}

// NewWhisperRecognizer accepts either "ru" or "ru-RU" style languages.
func NewWhisperRecognizer(client *openai.Client, language string) *WhisperRecognizer {
	if i := strings.IndexByte(language, '-'); i > 0 {
		language = language[:i]
	}
	return &WhisperRecognizer{client: client, language: strings.ToLower(language)}
}

// Recognize implements Recognizer.
func (w *WhisperRecognizer) Recognize(ctx context.Context, wav []byte) (string, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   bytes.NewReader(wav),
		FilePath: "voice.wav",
		Language: w.language,
	})
	if err != nil {
		return "", fmt.Errorf("whisper transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// OpenAISynthesizer 使用 OpenAI TTS 合成 MP3。
type OpenAISynthesizer struct {
	client *openai.Client
	voice  openai.SpeechVoice
}

// NewOpenAISynthesizer uses alloy when voice is empty.
func NewOpenAISynthesizer(client *openai.Client, voice string) *OpenAISynthesizer {
	v := openai.VoiceAlloy
	if voice != "" {
		v = openai.SpeechVoice(voice)
	}
	return &OpenAISynthesizer{client: client, voice: v}
}

// Synthesize implements Synthesizer.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech body: %w", err)
	}
	return audio, nil
}
