package config

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/sashabaranov/go-openai"

	"github.com/zhouzirui/gptbot/internal/service/ai/openaichat"
)

// ErrMissingCredential 表示缺少启动所必需的凭证。
var ErrMissingCredential = errors.New("missing required credential")

const (
	ProviderOpenAI     = "openai"
	ProviderArk        = "ark"
	ProviderVolcengine = "volcengine"
	ProviderNone       = "none"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Telegram  TelegramConfig
	AI        AIConfig
	Search    SearchConfig
	Speech    SpeechConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Server    ServerConfig
	Log       LogConfig
}

// Load 从环境变量加载配置。缺少 TG_BOT_TOKEN 或 CHATGPT_TOKEN 时返回 ErrMissingCredential。
func Load() (*Config, error) {
	telegram, err := loadTelegramConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	search, err := loadSearchConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig(ai)
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	rateLimit, err := loadRateLimitConfig()
	if err != nil {
		return nil, err
	}

	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Telegram:  telegram,
		AI:        ai,
		Search:    search,
		Speech:    speech,
		Session:   session,
		RateLimit: rateLimit,
		Server:    server,
		Log:       loadLogConfig(),
	}, nil
}

// TelegramConfig 描述机器人连接配置。
type TelegramConfig struct {
	Token string

	// AssetsDir 存放 <key>.jpg 图片，可为空。
	AssetsDir string
}

func loadTelegramConfig() (TelegramConfig, error) {
	token := strings.TrimSpace(os.Getenv("TG_BOT_TOKEN"))
	if token == "" {
		return TelegramConfig{}, fmt.Errorf("%w: TG_BOT_TOKEN", ErrMissingCredential)
	}
	return TelegramConfig{
		Token:     token,
		AssetsDir: strings.TrimSpace(os.Getenv("BOT_ASSETS_DIR")),
	}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider    string
	APIKey      string
	Model       string
	VisionModel string
	BaseURL     string
	Proxy       string
	Region      string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

func loadAIConfig() (AIConfig, error) {
	apiKey := normalizeAPIKey(strings.TrimSpace(os.Getenv("CHATGPT_TOKEN")))
	if apiKey == "" {
		return AIConfig{}, fmt.Errorf("%w: CHATGPT_TOKEN", ErrMissingCredential)
	}

	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderOpenAI))
	if provider != ProviderOpenAI && provider != ProviderArk {
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", provider)
	}

	temperature := float32(0.9)
	if override, err := parseOptionalFloatEnv("AI_TEMPERATURE"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		temperature = float32(*override)
	}

	maxTokens := 3000
	if override, err := parseOptionalIntEnv("AI_MAX_TOKENS"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		maxTokens = *override
	}

	timeout, err := parseSecondsEnv("AI_TIMEOUT_SECONDS", 60)
	if err != nil {
		return AIConfig{}, err
	}

	baseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	if provider == ProviderArk {
		baseURL = getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3")
	}

	return AIConfig{
		Provider:    provider,
		APIKey:      apiKey,
		Model:       getEnvOrDefault("AI_MODEL", "gpt-4"),
		VisionModel: getEnvOrDefault("AI_VISION_MODEL", "gpt-4o"),
		BaseURL:     baseURL,
		Proxy:       strings.TrimSpace(os.Getenv("OPENAI_PROXY")),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Timeout:     timeout,
	}, nil
}

// normalizeAPIKey 还原以 "gpt:" 开头的混淆密钥：sk-proj- 加上其余部分的逆序。
func normalizeAPIKey(token string) string {
	if !strings.HasPrefix(token, "gpt:") {
		return token
	}
	tail := []rune(strings.TrimPrefix(token, "gpt:"))
	for i, j := 0, len(tail)-1; i < j; i, j = i+1, j-1 {
		tail[i], tail[j] = tail[j], tail[i]
	}
	return "sk-proj-" + string(tail)
}

// OpenAIClient 构造 go-openai 客户端，支持自定义 BaseURL 与 HTTP 代理。
func (c AIConfig) OpenAIClient() (*openai.Client, error) {
	clientCfg := openai.DefaultConfig(c.APIKey)
	if c.BaseURL != "" && c.Provider == ProviderOpenAI {
		clientCfg.BaseURL = c.BaseURL
	}

	if c.Proxy != "" {
		proxyURL, err := url.Parse(c.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid OPENAI_PROXY value %q: %w", c.Proxy, err)
		}
		clientCfg.HTTPClient = &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}
	}

	return openai.NewClientWithConfig(clientCfg), nil
}

// NewChatModel 使用配置创建一个模型实例，modelName 为空时使用默认聊天模型。
func (c AIConfig) NewChatModel(ctx context.Context, modelName string) (model.BaseChatModel, error) {
	if modelName == "" {
		modelName = c.Model
	}

	temperature := c.Temperature
	maxTokens := c.MaxTokens

	switch c.Provider {
	case ProviderArk:
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     c.BaseURL,
			Region:      c.Region,
			APIKey:      c.APIKey,
			Model:       modelName,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
		})
	case ProviderOpenAI:
		client, err := c.OpenAIClient()
		if err != nil {
			return nil, err
		}
		return openaichat.New(client, openaichat.Config{
			Model:       modelName,
			Temperature: temperature,
			MaxTokens:   maxTokens,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider %q", c.Provider)
	}
}

// SearchConfig 描述联网搜索配置。
type SearchConfig struct {
	Enabled      bool
	Endpoint     string
	MaxResults   int
	Timeout      time.Duration
	FetchArticle bool
}

func loadSearchConfig() (SearchConfig, error) {
	enabled, err := parseBoolEnv("SEARCH_ENABLED", true)
	if err != nil {
		return SearchConfig{}, err
	}

	fetch, err := parseBoolEnv("SEARCH_FETCH_ARTICLE", false)
	if err != nil {
		return SearchConfig{}, err
	}

	maxResults := 3
	if override, err := parseOptionalIntEnv("SEARCH_MAX_RESULTS"); err != nil {
		return SearchConfig{}, err
	} else if override != nil && *override > 0 {
		maxResults = *override
	}

	timeout, err := parseSecondsEnv("SEARCH_TIMEOUT_SECONDS", 10)
	if err != nil {
		return SearchConfig{}, err
	}

	return SearchConfig{
		Enabled:      enabled,
		Endpoint:     getEnvOrDefault("SEARCH_ENDPOINT", "https://html.duckduckgo.com/html/"),
		MaxResults:   maxResults,
		Timeout:      timeout,
		FetchArticle: fetch,
	}, nil
}

// SpeechConfig 描述语音服务相关配置
type SpeechConfig struct {
	Provider    string
	FFmpegPath  string
	TempDir     string
	Timeout     time.Duration
	ASRLanguage string
	TTSLanguage string
	TTSVoice    string
	AppID       string
	AccessToken string
}

// Enabled 表示是否启用了语音功能以及是否提供了必需的密钥。
func (c SpeechConfig) Enabled() bool {
	switch c.Provider {
	case ProviderOpenAI:
		return true
	case ProviderVolcengine:
		return c.AppID != "" && c.AccessToken != ""
	default:
		return false
	}
}

func loadSpeechConfig(ai AIConfig) (SpeechConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("SPEECH_PROVIDER", ProviderOpenAI))
	switch provider {
	case ProviderOpenAI, ProviderVolcengine, ProviderNone:
	default:
		return SpeechConfig{}, fmt.Errorf("invalid SPEECH_PROVIDER value %q", provider)
	}
	// Whisper 与 TTS 复用 OpenAI 凭证，Ark 模式下没有对应接口。
	if provider == ProviderOpenAI && ai.Provider != ProviderOpenAI {
		provider = ProviderNone
	}

	timeout, err := parseSecondsEnv("SPEECH_TIMEOUT_SECONDS", 30)
	if err != nil {
		return SpeechConfig{}, err
	}

	return SpeechConfig{
		Provider:    provider,
		FFmpegPath:  getEnvOrDefault("FFMPEG_PATH", "ffmpeg"),
		TempDir:     getEnvOrDefault("SPEECH_TEMP_DIR", filepath.Join(os.TempDir(), "gptbot")),
		Timeout:     timeout,
		ASRLanguage: getEnvOrDefault("SPEECH_ASR_LANGUAGE", "ru-RU"),
		TTSLanguage: getEnvOrDefault("SPEECH_TTS_LANGUAGE", "ru"),
		TTSVoice:    strings.TrimSpace(os.Getenv("SPEECH_TTS_VOICE")),
		AppID:       strings.TrimSpace(os.Getenv("SPEECH_APP_ID")),
		AccessToken: strings.TrimSpace(os.Getenv("SPEECH_ACCESS_TOKEN")),
	}, nil
}

// SessionConfig 描述会话保留策略。
type SessionConfig struct {
	TTL       time.Duration
	SweepSpec string
}

func loadSessionConfig() (SessionConfig, error) {
	ttl := 24 * time.Hour
	if override, err := parseOptionalDurationEnv("SESSION_TTL"); err != nil {
		return SessionConfig{}, err
	} else if override != nil {
		ttl = *override
	}

	return SessionConfig{
		TTL:       ttl,
		SweepSpec: getEnvOrDefault("SESSION_SWEEP_SPEC", "@every 5m"),
	}, nil
}

// RateLimitConfig 描述每个会话的限流参数。
type RateLimitConfig struct {
	PerSecond float64
	Burst     int
}

func loadRateLimitConfig() (RateLimitConfig, error) {
	cfg := RateLimitConfig{PerSecond: 1, Burst: 5}

	if perSecond, err := parseOptionalFloatEnv("RATE_LIMIT_PER_SECOND"); err != nil {
		return RateLimitConfig{}, err
	} else if perSecond != nil {
		cfg.PerSecond = *perSecond
	}

	if burst, err := parseOptionalIntEnv("RATE_LIMIT_BURST"); err != nil {
		return RateLimitConfig{}, err
	} else if burst != nil {
		cfg.Burst = *burst
	}

	return cfg, nil
}

// ServerConfig 描述管理端 HTTP 服务配置。
type ServerConfig struct {
	Addr    string
	Enabled bool

	// Token 非空时 /api 路由要求 "Authorization: Bearer <Token>"。
	Token string
}

// loadServerConfig 解析服务器监听地址。只给端口时默认监听本机回环地址。
func loadServerConfig() (ServerConfig, error) {
	enabled, err := parseBoolEnv("ADMIN_ENABLED", true)
	if err != nil {
		return ServerConfig{}, err
	}
	token := strings.TrimSpace(os.Getenv("ADMIN_TOKEN"))

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, Enabled: enabled, Token: token}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: "127.0.0.1:" + port, Enabled: enabled, Token: token}, nil
}

// LogConfig 描述日志级别与格式。
type LogConfig struct {
	Level  string
	Format string
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Format: strings.ToLower(getEnvOrDefault("LOG_FORMAT", "text")),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalDurationEnv(key string) (*time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil, nil
	}

	val, err := time.ParseDuration(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

// parseSecondsEnv 读取以秒为单位的超时设置。
func parseSecondsEnv(key string, defaultSeconds int) (time.Duration, error) {
	seconds, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if seconds == nil || *seconds <= 0 {
		return time.Duration(defaultSeconds) * time.Second, nil
	}
	return time.Duration(*seconds) * time.Second, nil
}
