package speech

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/gptbot/internal/config"
	"github.com/zhouzirui/gptbot/internal/service/speech/volcengine"
)

// Pipeline couples a recognizer and synthesizer with ffmpeg transcoding.
type Pipeline struct {
	recognizer  Recognizer
	synthesizer Synthesizer
	transcoder  *Transcoder
	temp        *TempDir
	timeout     time.Duration
	logger      *logrus.Entry
}

// NewPipeline wires the pipeline from its parts. A zero timeout disables backend deadlines.
func NewPipeline(recognizer Recognizer, synthesizer Synthesizer, transcoder *Transcoder, temp *TempDir, timeout time.Duration) *Pipeline {
	return &Pipeline{
		recognizer:  recognizer,
		synthesizer: synthesizer,
		transcoder:  transcoder,
		temp:        temp,
		timeout:     timeout,
		logger:      logrus.WithField("component", "speech"),
	}
}

// New 根据配置选择语音后端。未启用时返回 ErrDisabled。
func New(cfg config.SpeechConfig, ai config.AIConfig) (*Pipeline, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}

	var (
		recognizer  Recognizer
		synthesizer Synthesizer
	)
	switch cfg.Provider {
	case config.ProviderOpenAI:
		client, err := ai.OpenAIClient()
		if err != nil {
			return nil, err
		}
		recognizer = NewWhisperRecognizer(client, cfg.ASRLanguage)
		synthesizer = NewOpenAISynthesizer(client, cfg.TTSVoice)
	case config.ProviderVolcengine:
		creds := volcengine.Credentials{AppID: cfg.AppID, AccessToken: cfg.AccessToken}
		recognizer = volcengine.NewASRClient(volcengine.ASRConfig{
			Credentials:   creds,
			Language:      cfg.ASRLanguage,
			ChunkInterval: 200 * time.Millisecond,
		})
		synthesizer = volcengine.NewTTSClient(volcengine.TTSConfig{
			Credentials: creds,
			Voice:       cfg.TTSVoice,
			Language:    cfg.TTSLanguage,
		})
	default:
		return nil, ErrDisabled
	}

	temp, err := NewTempDir(cfg.TempDir)
	if err != nil {
		return nil, err
	}

	transcoder := NewTranscoder(cfg.FFmpegPath, cfg.Timeout, ExecRunner{})
	return NewPipeline(recognizer, synthesizer, transcoder, temp, cfg.Timeout), nil
}

// Recognize transcodes a voice note to WAV and returns its transcript.
func (p *Pipeline) Recognize(ctx context.Context, audio []byte) (string, error) {
	input, output, err := p.paths("oga", "wav")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranscode, err)
	}
	defer p.cleanup(input, output)

	if err := os.WriteFile(input, audio, 0o600); err != nil {
		return "", fmt.Errorf("%w: write input: %w", ErrTranscode, err)
	}
	if err := p.transcoder.ToWAV(ctx, input, output); err != nil {
		return "", err
	}
	wav, err := os.ReadFile(output)
	if err != nil {
		return "", fmt.Errorf("%w: read output: %w", ErrTranscode, err)
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	text, err := p.recognizer.Recognize(ctx, wav)
	if err != nil {
		p.logger.WithError(err).Warn("recognition failed")
		return "", fmt.Errorf("%w: %w", ErrNotRecognized, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNotRecognized
	}
	return text, nil
}

// Synthesize returns an OGG voice note for text.
func (p *Pipeline) Synthesize(ctx context.Context, text string) ([]byte, error) {
	callCtx, cancel := p.withTimeout(ctx)
	mp3, err := p.synthesizer.Synthesize(callCtx, text)
	cancel()
	if err != nil {
		p.logger.WithError(err).Warn("synthesis failed")
		return nil, fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}
	if len(mp3) == 0 {
		return nil, ErrSynthesisFailed
	}

	input, output, err := p.paths("mp3", "ogg")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTranscode, err)
	}
	defer p.cleanup(input, output)

	if err := os.WriteFile(input, mp3, 0o600); err != nil {
		return nil, fmt.Errorf("%w: write input: %w", ErrTranscode, err)
	}
	if err := p.transcoder.ToOGG(ctx, input, output); err != nil {
		return nil, err
	}
	ogg, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("%w: read output: %w", ErrTranscode, err)
	}
	return ogg, nil
}

func (p *Pipeline) paths(inExt, outExt string) (string, string, error) {
	input, err := p.temp.Path("input", inExt)
	if err != nil {
		return "", "", err
	}
	output, err := p.temp.Path("output", outExt)
	if err != nil {
		return "", "", err
	}
	return input, output, nil
}

func (p *Pipeline) cleanup(paths ...string) {
	for _, path := range paths {
		removeWithRetry(path, p.logger)
	}
}

func (p *Pipeline) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.timeout)
}
