package openaichat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sashabaranov/go-openai"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *ChatModel {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = srv.URL + "/v1"
	return New(openai.NewClientWithConfig(cfg), Config{Model: "gpt-4", Temperature: 0.9, MaxTokens: 3000})
}

func TestGenerateSendsTranscriptAndDefaults(t *testing.T) {
	var got openai.ChatCompletionRequest
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: "assistant", Content: "4"},
				FinishReason: openai.FinishReasonStop,
			}},
		})
	})

	out, err := m.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("sys"),
		schema.UserMessage("2+2?"),
	})
	if err != nil {
		t.Fatalf("Generate err: %v", err)
	}
	if out.Content != "4" {
		t.Fatalf("unexpected content %q", out.Content)
	}
	if got.Model != "gpt-4" || got.MaxTokens != 3000 {
		t.Fatalf("unexpected request defaults: model=%s max_tokens=%d", got.Model, got.MaxTokens)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "2+2?" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
}

func TestGenerateHonoursModelOption(t *testing.T) {
	var got openai.ChatCompletionRequest
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "ok"}}},
		})
	})

	if _, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")}, model.WithModel("gpt-4o")); err != nil {
		t.Fatalf("Generate err: %v", err)
	}
	if got.Model != "gpt-4o" {
		t.Fatalf("expected model override, got %s", got.Model)
	}
}

func TestMultiContentBecomesImagePart(t *testing.T) {
	msgs := toOpenAIMessages([]*schema.Message{{
		Role: schema.User,
		MultiContent: []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: "что это?"},
			{Type: schema.ChatMessagePartTypeImageURL, ImageURL: &schema.ChatMessageImageURL{URL: "data:image/png;base64,AAAA"}},
		},
	}})

	if len(msgs) != 1 || len(msgs[0].MultiContent) != 2 {
		t.Fatalf("unexpected conversion: %+v", msgs)
	}
	if msgs[0].Content != "" {
		t.Fatal("content must be empty when multi content is set")
	}
	img := msgs[0].MultiContent[1]
	if img.Type != openai.ChatMessagePartTypeImageURL || img.ImageURL == nil || img.ImageURL.URL != "data:image/png;base64,AAAA" {
		t.Fatalf("unexpected image part: %+v", img)
	}
}

func TestGenerateReportsHTTPError(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	})

	if _, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")}); err == nil {
		t.Fatal("expected error")
	}
}
