package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Development keeps debug output and
// source annotations for local digging; production logs at info without the
// per-record source lookup.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}
	if cfg.IsProduction() {
		opts.Level = slog.LevelInfo
		opts.AddSource = false
	}

	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
