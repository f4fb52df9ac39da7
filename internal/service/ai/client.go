package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/gptbot/internal/config"
	"github.com/zhouzirui/gptbot/internal/model/session"
)

var (
	// ErrBackendUnavailable 表示补全后端调用失败（含超时）。
	ErrBackendUnavailable = errors.New("chat backend unavailable")
	// ErrEmptyReply 表示后端返回了空内容。
	ErrEmptyReply = errors.New("chat backend returned empty reply")
)

// Apology is the user-facing text of a failed completion.
const Apology = "Извините, произошла ошибка при обработке запроса."

// Result carries either the assistant reply or the reason it is missing.
type Result struct {
	Content string
	Err     error
}

// OK reports whether the backend produced a reply.
func (r Result) OK() bool {
	return r.Err == nil
}

// Text returns the reply, or the apology for a failed result.
func (r Result) Text() string {
	if r.Err != nil {
		return Apology
	}
	return r.Content
}

// Client wraps the chat completion backend. It holds no conversational state.
type Client struct {
	text    compose.Runnable[[]session.Turn, *schema.Message]
	vision  compose.Runnable[[]session.Turn, *schema.Message]
	timeout time.Duration
	logger  *logrus.Entry
}

// NewClient creates the text and vision models from configuration.
func NewClient(ctx context.Context, cfg config.AIConfig) (*Client, error) {
	textModel, err := cfg.NewChatModel(ctx, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	visionModel, err := cfg.NewChatModel(ctx, cfg.VisionModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision model: %w", err)
	}

	return NewClientWithModels(ctx, textModel, visionModel, cfg.Timeout)
}

// NewClientWithModels compiles one chain per model. A zero timeout disables the per-call deadline.
func NewClientWithModels(ctx context.Context, textModel, visionModel model.BaseChatModel, timeout time.Duration) (*Client, error) {
	text, err := compileChain(ctx, textModel)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	vision, err := compileChain(ctx, visionModel)
	if err != nil {
		return nil, fmt.Errorf("failed to compile vision chain: %w", err)
	}

	return &Client{
		text:    text,
		vision:  vision,
		timeout: timeout,
		logger:  logrus.WithField("component", "ai"),
	}, nil
}

func compileChain(ctx context.Context, chatModel model.BaseChatModel) (compose.Runnable[[]session.Turn, *schema.Message], error) {
	chain := compose.NewChain[[]session.Turn, *schema.Message]()
	chain.AppendLambda(compose.InvokableLambda(toMessages))
	chain.AppendChatModel(chatModel)
	return chain.Compile(ctx)
}

// Respond sends the full transcript and returns the next assistant message.
func (c *Client) Respond(ctx context.Context, transcript []session.Turn) Result {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	runnable, kind := c.text, "text"
	if hasImage(transcript) {
		runnable, kind = c.vision, "vision"
	}

	start := time.Now()
	logger := c.logger.WithFields(logrus.Fields{"model": kind, "turns": len(transcript)})

	msg, err := runnable.Invoke(ctx, transcript)
	if err != nil {
		logger.WithError(err).Error("completion failed")
		return Result{Err: fmt.Errorf("%w: %w", ErrBackendUnavailable, err)}
	}

	content := ""
	if msg != nil {
		content = strings.TrimSpace(msg.Content)
	}
	if content == "" {
		logger.Warn("completion returned empty reply")
		return Result{Err: ErrEmptyReply}
	}

	logger.WithFields(logrus.Fields{
		"duration": time.Since(start).Round(time.Millisecond),
		"length":   len(content),
	}).Debug("completion done")
	return Result{Content: content}
}

// Ask is a one-shot system + user exchange.
func (c *Client) Ask(ctx context.Context, system, user string) Result {
	return c.Respond(ctx, []session.Turn{
		{Role: session.RoleSystem, Content: system},
		{Role: session.RoleUser, Content: user},
	})
}

// Stream streams reply chunks of the text model. The caller owns ctx and must close the reader.
func (c *Client) Stream(ctx context.Context, transcript []session.Turn) (*schema.StreamReader[*schema.Message], error) {
	stream, err := c.text.Stream(ctx, transcript)
	if err != nil {
		c.logger.WithError(err).Error("stream failed")
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	return stream, nil
}

func hasImage(transcript []session.Turn) bool {
	for _, turn := range transcript {
		if turn.ImageURL != "" {
			return true
		}
	}
	return false
}

func toMessages(_ context.Context, transcript []session.Turn) ([]*schema.Message, error) {
	messages := make([]*schema.Message, 0, len(transcript))
	for _, turn := range transcript {
		switch turn.Role {
		case session.RoleSystem:
			messages = append(messages, schema.SystemMessage(turn.Content))
		case session.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		case session.RoleUser:
			if turn.ImageURL == "" {
				messages = append(messages, schema.UserMessage(turn.Content))
				continue
			}
			// 图片以多段内容发送：文字在前，图片在后。
			parts := make([]schema.ChatMessagePart, 0, 2)
			if turn.Content != "" {
				parts = append(parts, schema.ChatMessagePart{
					Type: schema.ChatMessagePartTypeText,
					Text: turn.Content,
				})
			}
			parts = append(parts, schema.ChatMessagePart{
				Type:     schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{URL: turn.ImageURL},
			})
			messages = append(messages, &schema.Message{Role: schema.User, MultiContent: parts})
		default:
			return nil, fmt.Errorf("unknown role %q", turn.Role)
		}
	}
	return messages, nil
}
