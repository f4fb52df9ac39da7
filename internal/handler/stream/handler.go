package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/gptbot/internal/model/prompt"
	"github.com/zhouzirui/gptbot/internal/model/session"
	"github.com/zhouzirui/gptbot/pkg/utils"
)

// Streamer streams the reply to a transcript.
type Streamer interface {
	Stream(ctx context.Context, transcript []session.Turn) (*schema.StreamReader[*schema.Message], error)
}

// Handler manages streaming AI responses via Server-Sent Events
type Handler struct {
	ai      Streamer
	prompts prompt.Store
	logger  *logrus.Entry
}

// New creates a new stream handler
func New(ai Streamer, prompts prompt.Store) *Handler {
	return &Handler{
		ai:      ai,
		prompts: prompts,
		logger:  logrus.WithField("component", "stream"),
	}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Content  string `json:"content,omitempty"`
	Finished bool   `json:"finished,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RegisterRoutes 注册流式接口
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream", h.handleStream)
}

// handleStream 用指定提示词试跑一轮对话，不读写任何会话。
// GET /stream?prompt=<key>&message=<text>；prompt 缺省为 gpt。
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	message := strings.TrimSpace(r.URL.Query().Get("message"))
	if message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	key := r.URL.Query().Get("prompt")
	if key == "" {
		key = "gpt"
	}
	system, err := h.prompts.Prompt(key)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	utils.SetupSSEHeaders(w)

	logger := h.logger.WithField("prompt", key)
	utils.SendSSEEvent(w, flusher, "start", StreamResponse{})

	content, err := h.streamReply(r.Context(), w, flusher, []session.Turn{
		{Role: session.RoleSystem, Content: system},
		{Role: session.RoleUser, Content: message},
	})
	if err != nil {
		logger.WithError(err).Error("stream failed")
		utils.SendSSEEvent(w, flusher, "error", StreamResponse{Error: err.Error()})
		return
	}

	utils.SendSSEEvent(w, flusher, "message", StreamResponse{Content: content})
	utils.SendSSEEvent(w, flusher, "end", StreamResponse{Finished: true})
	logger.WithField("length", len(content)).Info("stream completed")
}

func (h *Handler) streamReply(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, transcript []session.Turn) (string, error) {
	stream, err := h.ai.Stream(ctx, transcript)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", recvErr
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			utils.SendSSEEvent(w, flusher, "delta", StreamResponse{Content: chunk.Content})
		}
	}

	if len(chunks) == 0 {
		return "", nil
	}
	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", err
	}
	return response.Content, nil
}
