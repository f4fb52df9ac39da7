package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/gptbot/internal/config"
)

// ErrBackendUnavailable 表示搜索服务请求失败。
var ErrBackendUnavailable = errors.New("search backend unavailable")

const (
	defaultEndpoint = "https://html.duckduckgo.com/html/"
	defaultUA       = "Mozilla/5.0 (compatible; gptbot/1.0)"
	maxBodyBytes    = 2 * 1024 * 1024
	maxResultsCap   = 20
)

// Result 是一条搜索结果。
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet,omitempty"`
}

// Client queries the DuckDuckGo HTML endpoint.
type Client struct {
	endpoint   string
	maxResults int
	timeout    time.Duration
	httpClient *http.Client
	articles   *ArticleFetcher
	logger     *logrus.Entry
}

// NewClient builds a client from configuration.
func NewClient(cfg config.SearchConfig) *Client {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 3
	}
	if maxResults > maxResultsCap {
		maxResults = maxResultsCap
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	c := &Client{
		endpoint:   endpoint,
		maxResults: maxResults,
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logrus.WithField("component", "search"),
	}
	if cfg.FetchArticle {
		c.articles = NewArticleFetcher(httpClient)
	}
	return c
}

// Search 执行一次查询，最多返回 maxResults 条结果。
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	form := url.Values{}
	form.Set("q", query)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", defaultUA)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 32*1024))
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrBackendUnavailable, resp.StatusCode, string(bytes.ToValidUTF8(body, []byte("?"))))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	results, err := parseDuckDuckGoHTML(body, c.maxResults)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	c.logger.WithFields(logrus.Fields{"query": query, "results": len(results)}).Debug("search done")
	return results, nil
}

// Context 在触发器命中时执行搜索，返回应注入的系统消息文本。
// 第二个返回值为 false 表示未触发或搜索失败。
func (c *Client) Context(ctx context.Context, text string) (string, bool) {
	if c == nil || !NeedsSearch(text) {
		return "", false
	}

	results, err := c.Search(ctx, text)
	if err != nil {
		c.logger.WithError(err).Warn("search failed, continuing without context")
		return "", false
	}

	var sb strings.Builder
	sb.WriteString("Актуальная информация из интернета по запросу пользователя:\n\n")
	sb.WriteString(Format(results))

	if c.articles != nil && len(results) > 0 {
		article, err := c.articles.Fetch(ctx, results[0].Link)
		if err != nil {
			c.logger.WithError(err).WithField("link", results[0].Link).Debug("article extraction skipped")
		} else {
			sb.WriteString("\nТекст первой статьи:\n")
			sb.WriteString(article)
		}
	}

	return sb.String(), true
}
