package sl

import (
	"io"
	"log/slog"
)

// New создаёт логгер для окружения env: текст с debug локально и в dev,
// JSON с уровнем info в prod.
func New(env string, w io.Writer) *slog.Logger {
	switch env {
	case "prod":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
