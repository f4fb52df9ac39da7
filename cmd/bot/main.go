package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/gptbot/internal/config"
	"github.com/zhouzirui/gptbot/internal/handler"
	"github.com/zhouzirui/gptbot/internal/handler/telegram"
	"github.com/zhouzirui/gptbot/internal/model/prompt"
	"github.com/zhouzirui/gptbot/internal/service/ai"
	"github.com/zhouzirui/gptbot/internal/service/search"
	sessionService "github.com/zhouzirui/gptbot/internal/service/session"
	"github.com/zhouzirui/gptbot/internal/service/speech"
	"github.com/zhouzirui/gptbot/internal/service/vision"
)

func main() {
	exitOnError(newRootCmd().ExecuteContext(context.Background()))
}

// exitOnError 启动失败（如缺少配置）时以 Fatal 级别记录并退出。
func exitOnError(err error) {
	if err != nil {
		logrus.WithError(err).Fatal("gptbot failed")
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gptbot",
		Short:         "Telegram GPT bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	root.AddCommand(newServeCmd(), newPromptsCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and the optional admin server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func newPromptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prompts",
		Short: "Print the bundled persona and topic catalogue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := prompt.Default()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(store.Catalogue())
		},
	}
}

func serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.Log)

	prompts, err := prompt.Default()
	if err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}

	sessions := sessionService.NewStore(cfg.Session.TTL)
	sweeper := sessionService.NewSweeper(sessions, cfg.Session.SweepSpec)
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("start session sweeper: %w", err)
	}
	defer sweeper.Stop()

	aiClient, err := ai.NewClient(ctx, cfg.AI)
	if err != nil {
		return fmt.Errorf("init ai client: %w", err)
	}

	deps := telegram.Deps{
		Prompts:  prompts,
		Sessions: sessions,
		AI:       aiClient,
		Vision:   vision.NewFetcher(cfg.AI.Timeout),
	}
	if cfg.Search.Enabled {
		deps.Search = search.NewClient(cfg.Search)
	}

	services := handler.Services{
		Prompts:    prompts,
		Sessions:   sessions,
		AI:         aiClient,
		AdminToken: cfg.Server.Token,
	}

	pipeline, err := speech.New(cfg.Speech, cfg.AI)
	switch {
	case errors.Is(err, speech.ErrDisabled):
		logrus.Info("speech disabled, voice messages will not be recognized")
	case err != nil:
		logrus.WithError(err).Warn("speech pipeline unavailable")
	default:
		// 只在非 nil 时赋值，避免 typed nil 接口
		deps.Speech = pipeline
		services.Speech = pipeline
	}

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("connect telegram: %w", err)
	}
	logrus.WithField("bot", api.Self.UserName).Info("authorized on telegram")

	bot := telegram.NewBot(api, deps, cfg.Telegram, cfg.RateLimit)

	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Run(ctx)
	}()

	if cfg.Server.Enabled {
		if cfg.Server.Token == "" {
			logrus.WithField("addr", cfg.Server.Addr).Warn("ADMIN_TOKEN not set, admin API is unauthenticated")
		}
		srv := startServer(cfg.Server.Addr, handler.NewRouter(services))
		if err := runServer(ctx, srv); err != nil {
			logrus.WithError(err).Error("admin server error")
		}
	} else {
		<-ctx.Done()
	}

	<-done
	logrus.Info("bot stopped")
	return nil
}

func setupLogging(cfg config.LogConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.WithField("level", cfg.Level).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

func startServer(addr string, h http.Handler) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logrus.WithField("addr", addr).Info("admin server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("server error")
		}
	}()

	return srv
}

func runServer(ctx context.Context, srv *http.Server) error {
	<-ctx.Done()
	logrus.Info("shutting down admin server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
