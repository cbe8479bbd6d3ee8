package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger writing to stdout. Services and handlers take
// *slog.Logger as a dependency rather than reaching for a package global.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
