// Package logging builds a configured *slog.Logger for the daemon and its
// scope controllers.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config is the slog-facing logging configuration, matching the
// logging.logto option surfaced through global config.
type Config struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	LogTo  string `yaml:"logto"`  // stdout, stderr, or a file path

	MaxSizeMB  int `yaml:"max_size_mb"`
	MaxBackups int `yaml:"max_backups"`
	MaxAgeDays int `yaml:"max_age_days"`
}

// NewLogger builds a slog.Logger tagged with the given component name.
func NewLogger(component string, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	writer := newWriter(cfg)

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	return slog.New(handler).With("component", component)
}

// WithRequest returns a logger annotated with a request correlation id, for
// use by the dispatcher's per-request log line.
func WithRequest(logger *slog.Logger, requestID string) *slog.Logger {
	return logger.With("request_id", requestID)
}

type gameIDKey struct{}

// WithGameID returns a context carrying a game id for ContextLogger to pick up.
func WithGameID(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, gameIDKey{}, id)
}

// ContextLogger pulls well-known values out of ctx and attaches them to logger.
func ContextLogger(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if gameID := ctx.Value(gameIDKey{}); gameID != nil {
		logger = logger.With("game_id", gameID)
	}
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newWriter(cfg Config) io.Writer {
	switch strings.ToLower(strings.TrimSpace(cfg.LogTo)) {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	default:
		return fileWriter(cfg)
	}
}

func fileWriter(cfg Config) io.Writer {
	dir := filepath.Dir(cfg.LogTo)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "logging: failed to create %s, falling back to stdout: %v\n", dir, err)
		return os.Stdout
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	maxBackups := cfg.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 5
	}
	maxAge := cfg.MaxAgeDays
	if maxAge <= 0 {
		maxAge = 28
	}

	return &lumberjack.Logger{
		Filename:   cfg.LogTo,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   true,
	}
}

// GetEnvOrDefault returns os.Getenv(key) or def if unset/empty.
func GetEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// GetEnvIntOrDefault parses os.Getenv(key) as an int, falling back to def.
func GetEnvIntOrDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
