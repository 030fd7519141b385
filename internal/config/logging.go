package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// logStampLayout sorts lexically in chronological order
const logStampLayout = "2006-01-02T15-04-05"

// NewLogger builds the JSON logger used by every command.
// Debug level is enabled in dev.
func NewLogger(env string, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if env == "dev" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// SetupLogFile opens dir/name-<timestamp>.log and prunes the directory so at
// most maxFiles logs for name remain, the new one included. The caller closes the file.
func SetupLogFile(dir, name string, maxFiles int) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	path := filepath.Join(dir, name+"-"+time.Now().Format(logStampLayout)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	// Pruning failures leave extra files behind but never block startup
	if err := pruneLogs(dir, name, maxFiles); err != nil {
		slog.Warn("failed to prune old log files", "dir", dir, "error", err)
	}

	return f, nil
}

// pruneLogs deletes the oldest name-*.log files beyond keep
func pruneLogs(dir, name string, keep int) error {
	keep = max(keep, 1)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var logs []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), name+"-") && strings.HasSuffix(e.Name(), ".log") {
			logs = append(logs, e.Name())
		}
	}
	if len(logs) <= keep {
		return nil
	}

	slices.Sort(logs)

	var errs []error
	for _, old := range logs[:len(logs)-keep] {
		if err := os.Remove(filepath.Join(dir, old)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
