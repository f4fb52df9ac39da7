package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/gptbot/internal/model/prompt"
	"github.com/zhouzirui/gptbot/internal/model/session"
)

type fakeStreamer struct {
	chunks []string
	err    error
	got    []session.Turn
}

func (f *fakeStreamer) Stream(_ context.Context, transcript []session.Turn) (*schema.StreamReader[*schema.Message], error) {
	f.got = transcript
	if f.err != nil {
		return nil, f.err
	}
	msgs := make([]*schema.Message, 0, len(f.chunks))
	for _, c := range f.chunks {
		msgs = append(msgs, schema.AssistantMessage(c, nil))
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func setupRouter(t *testing.T, ai Streamer) *chi.Mux {
	t.Helper()
	store, err := prompt.Default()
	if err != nil {
		t.Fatalf("prompt.Default err: %v", err)
	}
	r := chi.NewRouter()
	New(ai, store).RegisterRoutes(r)
	return r
}

func TestStreamSendsDeltasAndFinalMessage(t *testing.T) {
	ai := &fakeStreamer{chunks: []string{"При", "вет"}}
	r := setupRouter(t, ai)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/stream?prompt=talk_tolkien&message=hello", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := resp.Body.String()
	for _, want := range []string{
		"event: start",
		"event: delta\ndata: {\"content\":\"При\"}",
		"event: delta\ndata: {\"content\":\"вет\"}",
		"event: message\ndata: {\"content\":\"Привет\"}",
		"event: end\ndata: {\"finished\":true}",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("body lacks %q:\n%s", want, body)
		}
	}

	if len(ai.got) != 2 || ai.got[0].Role != session.RoleSystem || ai.got[1].Content != "hello" {
		t.Fatalf("unexpected transcript: %+v", ai.got)
	}
}

func TestStreamBackendError(t *testing.T) {
	r := setupRouter(t, &fakeStreamer{err: errors.New("backend down")})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/stream?message=hi", nil))

	if !strings.Contains(resp.Body.String(), "event: error") {
		t.Fatalf("expected error event, got %q", resp.Body.String())
	}
}

func TestStreamValidation(t *testing.T) {
	r := setupRouter(t, &fakeStreamer{})

	tests := []struct {
		target string
		status int
	}{
		{"/stream", http.StatusBadRequest},
		{"/stream?message=hi&prompt=missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, tt.target, nil))
		if resp.Code != tt.status {
			t.Fatalf("%s: expected %d, got %d", tt.target, tt.status, resp.Code)
		}
	}
}
