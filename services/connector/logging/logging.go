// Package logging configures the standard logger for the connector CLI.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Setup sends log output to stderr and, when LOG_FILE is set, to that file too.
// LOG_FILE_MODE selects "a" (append, default) or "w" (truncate). The returned
// closer releases the file handle.
func Setup() (io.Closer, error) {
	log.SetFlags(log.LstdFlags)
	log.SetOutput(os.Stderr)

	path := strings.TrimSpace(os.Getenv("LOG_FILE"))
	if path == "" {
		return nopCloser{}, nil
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_FILE_MODE")), "w") {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
