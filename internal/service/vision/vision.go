// Package vision prepares inbound photos for a multimodal completion.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrFetchFailed 表示图片下载失败或内容不是图片。
var ErrFetchFailed = errors.New("image fetch failed")

// FailureText is shown when an image cannot be analysed.
const FailureText = "Не удалось проанализировать изображение."

const maxImageBytes = 10 * 1024 * 1024

// Fetcher downloads images and encodes them as data URLs.
type Fetcher struct {
	httpClient *http.Client
	logger     *logrus.Entry
}

// NewFetcher 创建下载器，timeout 为零时默认 20 秒。
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logrus.WithField("component", "vision"),
	}
}

// DataURL downloads url and returns data:<mime>;base64,<payload>.
func (f *Fetcher) DataURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		f.logger.WithError(err).Warn("image download failed")
		return "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d", ErrFetchFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	return Encode(data)
}

// Encode 根据内容嗅探 MIME 类型并编码为 data URL。
func Encode(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty body", ErrFetchFailed)
	}

	mime := http.DetectContentType(data)
	if i := strings.IndexByte(mime, ';'); i > 0 {
		mime = mime[:i]
	}
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: unexpected content type %s", ErrFetchFailed, mime)
	}

	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
