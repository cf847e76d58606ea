// Package logging задаёт минимальный интерфейс структурированного логгера,
// которым пользуются все слои сервера.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// Logger - структурированный логгер с поддержкой контекста.
//
// Вариативные аргументы трактуются как пары ключ-значение:
//
//	log.Info(ctx, "сервер запущен", "addr", addr)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With возвращает дочерний логгер, всегда добавляющий переданные пары.
	With(args ...any) Logger
}

// New создаёт slog-логгер, пишущий в w в формате format ("text" или "json").
func New(w io.Writer, level, format string) *SlogLogger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return NewSlogLogger(slog.New(h))
}

// ParseLevel переводит строковый уровень в slog.Level. Неизвестное значение - info.
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

// Nop возвращает логгер, отбрасывающий все записи. Удобен в тестах.
func Nop() Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
