package config

import (
	"log/slog"
	"os"
)

// NewLogger builds the agent logger. Production logs are JSON for journald
// scraping, everything else is text with source locations.
func NewLogger(env, deviceID string) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: env == "development",
	}

	var handler slog.Handler
	if env == "production" {
		opts.Level = slog.LevelInfo
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(slog.String("device_id", deviceID))
}
