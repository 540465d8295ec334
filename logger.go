package orderbook

import (
	"log/slog"
	"os"
)

var (
	logLevel = new(slog.LevelVar)
	logger   = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
)

// SetLogger allows setting a custom logger.
// Engines take the logger when they are created.
func SetLogger(l *slog.Logger) {
	logger = l
}

// SetLogLevel changes the level of the default logger.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}
