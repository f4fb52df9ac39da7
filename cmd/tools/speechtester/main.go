package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/gptbot/internal/config"
	"github.com/zhouzirui/gptbot/internal/service/speech"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.WithError(err).Fatal("speechtester failed")
	}
}

func newRootCmd() *cobra.Command {
	var timeout time.Duration

	root := &cobra.Command{
		Use:           "speechtester",
		Short:         "手动测试语音识别与合成",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", 45*time.Second, "请求超时时间")

	root.AddCommand(newASRCmd(&timeout), newTTSCmd(&timeout))
	return root
}

func newASRCmd(timeout *time.Duration) *cobra.Command {
	return &cobra.Command{
		Use:   "asr <audio.ogg>",
		Short: "识别 OGG/Opus 语音文件",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			audio, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("打开音频文件失败: %w", err)
			}

			pipeline, err := loadPipeline()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), *timeout)
			defer cancel()

			logrus.WithField("file", args[0]).Info("开始进行 ASR 测试")
			text, err := pipeline.Recognize(ctx, audio)
			if err != nil {
				return fmt.Errorf("ASR 调用失败: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newTTSCmd(timeout *time.Duration) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "tts <text>",
		Short: "合成 OGG/Opus 语音",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return errors.New("TTS 模式需要提供待合成文本")
			}
			if output == "" {
				output = fmt.Sprintf("tts-output-%d.ogg", time.Now().Unix())
			}

			pipeline, err := loadPipeline()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), *timeout)
			defer cancel()

			logrus.WithField("chars", len([]rune(text))).Info("开始进行 TTS 测试")
			audio, err := pipeline.Synthesize(ctx, text)
			if err != nil {
				return fmt.Errorf("TTS 调用失败: %w", err)
			}

			if err := os.WriteFile(output, audio, 0o644); err != nil {
				return fmt.Errorf("写入音频文件失败: %w", err)
			}
			logrus.WithField("file", output).WithField("bytes", len(audio)).Info("TTS 合成成功")
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "out", "o", "", "输出文件路径 (默认自动生成)")
	return cmd
}

func loadPipeline() (*speech.Pipeline, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Warnf("无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("配置加载失败: %w", err)
	}

	pipeline, err := speech.New(cfg.Speech, cfg.AI)
	if errors.Is(err, speech.ErrDisabled) {
		return nil, errors.New("语音服务未启用，请先配置 SPEECH_PROVIDER 及其凭证")
	}
	return pipeline, err
}
