package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger writing to stdout. LINEAGE_LOG_LEVEL
// selects the minimum level (debug, info, warn, error); default info.
func New() *slog.Logger {
	level := slog.LevelInfo
	switch os.Getenv("LINEAGE_LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
