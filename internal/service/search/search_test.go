package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zhouzirui/gptbot/internal/config"
)

const resultsPage = `<html><body>
<div class="result results_links">
  <h2><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fnews&rut=x">Главные <b>новости</b></a></h2>
  <a class="result__snippet" href="#">Свежие события за сегодня.</a>
</div>
<div class="result results_links">
  <h2><a class="result__a" href="https://example.org/weather">Погода</a></h2>
  <div class="result__snippet">Прогноз на неделю.</div>
</div>
<div class="result results_links">
  <h2><a class="result__a" href="https://example.net/third">Третий</a></h2>
  <div class="result__snippet">Лишний результат.</div>
</div>
</body></html>`

func newSearchServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("q") == "" {
			t.Error("missing q")
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSearchParsesResults(t *testing.T) {
	srv := newSearchServer(t, resultsPage, http.StatusOK)
	client := NewClient(config.SearchConfig{Endpoint: srv.URL, MaxResults: 2, Timeout: time.Second})

	results, err := client.Search(context.Background(), "новости сегодня")
	if err != nil {
		t.Fatalf("Search err: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(results), results)
	}

	want := Result{Title: "Главные новости", Link: "https://example.com/news", Snippet: "Свежие события за сегодня."}
	if results[0] != want {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[1].Snippet != "Прогноз на неделю." {
		t.Fatalf("snippet paired with wrong result: %+v", results[1])
	}
}

func TestSearchNon2xx(t *testing.T) {
	srv := newSearchServer(t, "blocked", http.StatusForbidden)
	client := NewClient(config.SearchConfig{Endpoint: srv.URL, Timeout: time.Second})

	_, err := client.Search(context.Background(), "курс доллара")
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestContextOnlyWhenTriggered(t *testing.T) {
	srv := newSearchServer(t, resultsPage, http.StatusOK)
	client := NewClient(config.SearchConfig{Endpoint: srv.URL, MaxResults: 1, Timeout: time.Second})

	if _, ok := client.Context(context.Background(), "привет, как тебя зовут"); ok {
		t.Fatal("context should not be produced for small talk")
	}

	text, ok := client.Context(context.Background(), "какие новости сегодня")
	if !ok {
		t.Fatal("expected search context")
	}
	if !strings.Contains(text, "https://example.com/news") {
		t.Fatalf("context lacks result link: %q", text)
	}
}

func TestContextSwallowsBackendErrors(t *testing.T) {
	srv := newSearchServer(t, "", http.StatusInternalServerError)
	client := NewClient(config.SearchConfig{Endpoint: srv.URL, Timeout: time.Second})

	if _, ok := client.Context(context.Background(), "какие новости сегодня"); ok {
		t.Fatal("failed search must not produce context")
	}
}

func TestFormat(t *testing.T) {
	if got := Format(nil); got != NoResults {
		t.Fatalf("unexpected empty rendering %q", got)
	}

	got := Format([]Result{{Title: "A & B", Link: "https://a.example", Snippet: "текст"}})
	want := "🔍 <b>Результаты поиска:</b>\n\n1. <b>A &amp; B</b>\n📎 https://a.example\n📝 текст\n\n"
	if got != want {
		t.Fatalf("Format mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestNormalizeResultURL(t *testing.T) {
	cases := map[string]string{
		"//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F": "https://go.dev/",
		"//example.com/page":                               "https://example.com/page",
		"https://example.com/x":                            "https://example.com/x",
	}
	for in, want := range cases {
		if got := normalizeResultURL(in); got != want {
			t.Errorf("normalizeResultURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestArticleFetcherTruncates(t *testing.T) {
	long := strings.Repeat("Слово статьи. ", 400)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><head><title>Статья</title></head><body><article><h1>Статья</h1><p>%s</p><p>%s</p></article></body></html>", long, long)
	}))
	defer srv.Close()

	text, err := NewArticleFetcher(srv.Client()).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch err: %v", err)
	}
	if n := len([]rune(text)); n > maxArticleRunes+1 {
		t.Fatalf("article not truncated: %d runes", n)
	}
	if !strings.Contains(text, "Слово статьи.") {
		t.Fatalf("unexpected article text %q", text[:50])
	}
}
