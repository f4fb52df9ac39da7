package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Invocation describes one external process run.
type Invocation struct {
	Binary  string
	Args    []string
	Dir     string
	Timeout time.Duration
}

// Runner executes an Invocation.
type Runner interface {
	Run(ctx context.Context, inv Invocation) error
}

// ExecRunner runs invocations with os/exec, capturing stderr for error messages.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, inv Invocation) error {
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, inv.Binary, inv.Args...)
	cmd.Dir = inv.Dir
	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.Stdout = nil

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w\n%s", inv.Binary, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Transcoder builds ffmpeg invocations for the two conversions the bot needs.
type Transcoder struct {
	binary  string
	timeout time.Duration
	runner  Runner
}

// NewTranscoder 创建转码器，binary 为空时使用 PATH 中的 ffmpeg。
func NewTranscoder(binary string, timeout time.Duration, runner Runner) *Transcoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Transcoder{binary: binary, timeout: timeout, runner: runner}
}

// ToWAV converts a voice note to 16 kHz mono PCM WAV.
func (t *Transcoder) ToWAV(ctx context.Context, input, output string) error {
	return t.run(ctx, "wav",
		"-y",
		"-i", input,
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", "16000",
		output,
	)
}

// ToOGG converts synthesized MP3 to mono Vorbis OGG.
func (t *Transcoder) ToOGG(ctx context.Context, input, output string) error {
	return t.run(ctx, "ogg",
		"-y",
		"-i", input,
		"-acodec", "libvorbis",
		"-ac", "1",
		output,
	)
}

func (t *Transcoder) run(ctx context.Context, target string, args ...string) error {
	inv := Invocation{Binary: t.binary, Args: args, Timeout: t.timeout}
	if err := t.runner.Run(ctx, inv); err != nil {
		return fmt.Errorf("%w (→ %s): %w", ErrTranscode, target, err)
	}
	return nil
}
