// Package speech turns Telegram voice notes into text and text back into voice notes.
package speech

import (
	"context"
	"errors"
)

var (
	// ErrTranscode 表示 ffmpeg 转码失败。
	ErrTranscode = errors.New("audio transcoding failed")
	// ErrNotRecognized 表示识别失败或识别结果为空。
	ErrNotRecognized = errors.New("speech not recognized")
	// ErrSynthesisFailed 表示语音合成失败。
	ErrSynthesisFailed = errors.New("speech synthesis failed")
	// ErrDisabled 表示未配置语音服务。
	ErrDisabled = errors.New("speech disabled")
)

// Recognizer converts 16 kHz mono WAV audio to text.
type Recognizer interface {
	Recognize(ctx context.Context, wav []byte) (string, error)
}

// Synthesizer converts text to MP3 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
