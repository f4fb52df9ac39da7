package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

const (
	maxArticleBytes = 2 * 1024 * 1024
	maxArticleRunes = 1500
)

// ArticleFetcher extracts the readable text of a result page.
type ArticleFetcher struct {
	httpClient *http.Client
}

// NewArticleFetcher returns a fetcher using httpClient.
func NewArticleFetcher(httpClient *http.Client) *ArticleFetcher {
	return &ArticleFetcher{httpClient: httpClient}
}

// Fetch 下载页面并提取正文，结果截断到 maxArticleRunes 个字符。
func (f *ArticleFetcher) Fetch(ctx context.Context, link string) (string, error) {
	parsed, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("invalid URL %s: %w", link, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", defaultUA)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("could not fetch URL %s: %w", link, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("could not fetch URL %s: HTTP %d", link, resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxArticleBytes), parsed)
	if err != nil {
		return "", fmt.Errorf("could not extract article from %s: %w", link, err)
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if text == "" {
		return "", fmt.Errorf("no readable content extracted from %s", link)
	}
	return truncateRunes(text, maxArticleRunes), nil
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "…"
}
