package speech

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const (
	removeAttempts = 3
	removeDelay    = 100 * time.Millisecond
)

// TempDir hands out unique, time-ordered media file paths.
type TempDir struct {
	dir string
}

// NewTempDir 确保目录存在。
func NewTempDir(dir string) (*TempDir, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "gptbot")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir %s: %w", dir, err)
	}
	return &TempDir{dir: dir}, nil
}

// Path returns <dir>/<prefix>_<ulid>.<ext>. The file is not created.
func (t *TempDir) Path(prefix, ext string) (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate ulid: %w", err)
	}
	return filepath.Join(t.dir, fmt.Sprintf("%s_%s.%s", prefix, id, ext)), nil
}

// removeWithRetry 尽力删除文件，最多重试 removeAttempts 次。
func removeWithRetry(path string, logger *logrus.Entry) {
	if path == "" {
		return
	}

	var err error
	for attempt := 1; attempt <= removeAttempts; attempt++ {
		err = os.Remove(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return
		}
		if attempt < removeAttempts {
			time.Sleep(removeDelay)
		}
	}
	logger.WithError(err).WithField("path", path).Warn("failed to remove temp file")
}
