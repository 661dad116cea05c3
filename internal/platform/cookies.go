package platform

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// CookieFilePattern names the per-invocation cookie jar
const CookieFilePattern = "ytfetchd-cookies-*.txt"

// writeCookieJar writes content to a private temp file in dir.
// The returned cleanup removes it and must always be called.
func writeCookieJar(dir, content string, logger *slog.Logger) (string, func(), error) {
	noop := func() {}
	if content == "" {
		return "", noop, nil
	}

	f, err := os.CreateTemp(dir, CookieFilePattern)
	if err != nil {
		return "", noop, fmt.Errorf("create cookie file: %w", err)
	}
	path := f.Name()
	cleanup := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Error("failed to remove cookie file", "error", err)
		}
	}

	if err := f.Chmod(0o600); err != nil {
		f.Close()
		cleanup()
		return "", noop, fmt.Errorf("restrict cookie file: %w", err)
	}
	if _, err := io.WriteString(f, content); err != nil {
		f.Close()
		cleanup()
		return "", noop, fmt.Errorf("write cookie file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("close cookie file: %w", err)
	}
	return path, cleanup, nil
}
