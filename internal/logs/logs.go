// Package logs configures the process-wide slog logger. Records go to
// stderr at the console level and, when a log directory is known, to a
// size-rotated file at debug level.
package logs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures Setup
type Options struct {
	// Verbose lowers the console level to debug
	Verbose bool
	// Dir is where gg.log is written; empty disables the file sink
	Dir string
	// Console defaults to stderr
	Console io.Writer
}

func newRotatingWriter(path string) *lumberjack.Logger {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    1,
		MaxBackups: 2,
		MaxAge:     30,
	}

	if v := os.Getenv("GG_LOG_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			w.MaxSize = n
		}
	}
	if v := os.Getenv("GG_LOG_MAX_BACKUPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			w.MaxBackups = n
		}
	}
	return w
}

// Setup installs the default logger. The returned func flushes and closes
// the file sink.
func Setup(opts Options) func() {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlers := []slog.Handler{
		slog.NewTextHandler(console, &slog.HandlerOptions{Level: level}),
	}

	closer := func() {}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err == nil {
			w := newRotatingWriter(filepath.Join(opts.Dir, "gg.log"))
			handlers = append(handlers, slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
			closer = func() { _ = w.Close() }
		}
	}

	slog.SetDefault(slog.New(&fanout{handlers: handlers}))
	return closer
}

// fanout sends each record to every handler that accepts its level
type fanout struct {
	handlers []slog.Handler
}

func (h *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanout) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (h *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &fanout{handlers: next}
}

func (h *fanout) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &fanout{handlers: next}
}
