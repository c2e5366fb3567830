// Package logging настраивает структурированный логгер slog
package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// New создает JSON-логгер с заданным уровнем. w может быть nil.
func New(level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(handler)
}

// ParseLevel переводит текстовый уровень в slog.Level
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard логгер для тестов
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Err атрибут ошибки
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// lineWriter пишет каждую строку как отдельную запись slog
type lineWriter struct {
	logger *slog.Logger
	msg    string
}

// Writer возвращает io.Writer, который переводит строки (например, access log
// gorilla/handlers) в записи logger с полем line.
func Writer(logger *slog.Logger, msg string) io.Writer {
	return &lineWriter{logger: logger, msg: msg}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimRight(p, "\r\n"), []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		w.logger.LogAttrs(context.Background(), slog.LevelInfo, w.msg, slog.String("line", string(line)))
	}
	return len(p), nil
}
