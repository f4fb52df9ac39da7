package ai

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/gptbot/internal/model/session"
	sessionservice "github.com/zhouzirui/gptbot/internal/service/session"
)

func newTestClient(t *testing.T, text, vision *fakeModel) *Client {
	t.Helper()
	client, err := NewClientWithModels(context.Background(), text, vision, time.Second)
	if err != nil {
		t.Fatalf("NewClientWithModels err: %v", err)
	}
	return client
}

func TestRespondReturnsReplyWithoutTouchingSession(t *testing.T) {
	store := sessionservice.NewStore(0)
	store.SetPrompt(1, "Ты помощник.")
	store.Append(1, session.RoleUser, "привет")
	store.Append(1, session.RoleAssistant, "здравствуйте")
	before := store.Snapshot(1)

	text := &fakeModel{reply: "fixed echo"}
	client := newTestClient(t, text, &fakeModel{})

	res := client.Respond(context.Background(), before.Transcript)
	if !res.OK() || res.Text() != "fixed echo" {
		t.Fatalf("unexpected result: %+v", res)
	}

	after := store.Snapshot(1)
	if !reflect.DeepEqual(before.Transcript, after.Transcript) || before.Generation != after.Generation {
		t.Fatalf("session mutated: before=%+v after=%+v", before, after)
	}

	got := text.lastCall()
	if len(got) != 3 || got[0].Role != schema.System || got[2].Role != schema.Assistant {
		t.Fatalf("unexpected model input: %+v", got)
	}
}

func TestRespondFailureYieldsApology(t *testing.T) {
	backendErr := errors.New("connection reset")
	client := newTestClient(t, &fakeModel{err: backendErr}, &fakeModel{})

	res := client.Respond(context.Background(), []session.Turn{{Role: session.RoleUser, Content: "hi"}})
	if res.OK() {
		t.Fatal("expected failure")
	}
	if res.Text() != Apology {
		t.Fatalf("unexpected text %q", res.Text())
	}
	if !errors.Is(res.Err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", res.Err)
	}
	if !strings.Contains(res.Err.Error(), "connection reset") {
		t.Fatalf("original error lost: %v", res.Err)
	}
}

func TestRespondEmptyReply(t *testing.T) {
	client := newTestClient(t, &fakeModel{reply: "  \n"}, &fakeModel{})

	res := client.Respond(context.Background(), []session.Turn{{Role: session.RoleUser, Content: "hi"}})
	if !errors.Is(res.Err, ErrEmptyReply) {
		t.Fatalf("expected ErrEmptyReply, got %v", res.Err)
	}
	if res.Text() != Apology {
		t.Fatalf("unexpected text %q", res.Text())
	}
}

func TestRespondUsesVisionModelForImages(t *testing.T) {
	text := &fakeModel{reply: "text"}
	vision := &fakeModel{reply: "на фото кот"}
	client := newTestClient(t, text, vision)

	res := client.Respond(context.Background(), []session.Turn{
		{Role: session.RoleSystem, Content: "sys"},
		{Role: session.RoleUser, Content: "что это?", ImageURL: "data:image/jpeg;base64,AAAA"},
	})
	if res.Text() != "на фото кот" {
		t.Fatalf("unexpected reply %q", res.Text())
	}
	if text.callCount() != 0 || vision.callCount() != 1 {
		t.Fatalf("wrong model selected: text=%d vision=%d", text.callCount(), vision.callCount())
	}

	user := vision.lastCall()[1]
	if len(user.MultiContent) != 2 {
		t.Fatalf("expected text and image parts, got %+v", user.MultiContent)
	}
	if user.MultiContent[0].Text != "что это?" || user.MultiContent[1].ImageURL.URL != "data:image/jpeg;base64,AAAA" {
		t.Fatalf("unexpected parts: %+v", user.MultiContent)
	}
}

func TestAskBuildsTwoTurnTranscript(t *testing.T) {
	text := &fakeModel{reply: "Осьминоги имеют три сердца."}
	client := newTestClient(t, text, &fakeModel{})

	res := client.Ask(context.Background(), "Расскажи факт", "факт")
	if res.Text() != "Осьминоги имеют три сердца." {
		t.Fatalf("unexpected reply %q", res.Text())
	}

	got := text.lastCall()
	if len(got) != 2 || got[0].Content != "Расскажи факт" || got[1].Content != "факт" {
		t.Fatalf("unexpected input: %+v", got)
	}
}

func TestStreamDeliversChunks(t *testing.T) {
	client := newTestClient(t, &fakeModel{reply: "поток"}, &fakeModel{})

	stream, err := client.Stream(context.Background(), []session.Turn{{Role: session.RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Stream err: %v", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv err: %v", err)
		}
		sb.WriteString(chunk.Content)
	}
	if sb.String() != "поток" {
		t.Fatalf("unexpected stream content %q", sb.String())
	}
}
