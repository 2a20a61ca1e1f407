// Package logger はプロセス全体の slog ロガーを構成します。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var levelVar slog.LevelVar

// Setup installs a JSON slog handler writing to w as the default logger.
// A nil writer means stdout.
func Setup(w io.Writer, level string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	SetLevel(level)
	l := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: &levelVar}))
	slog.SetDefault(l)
	return l
}

// SetLevel changes the minimum level at runtime. Unknown names fall back to info.
func SetLevel(level string) {
	levelVar.Set(ParseLevel(level))
}

// ParseLevel maps a level name to slog.Level.
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
