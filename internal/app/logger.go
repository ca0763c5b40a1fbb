package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Development gets debug level with
// source locations; the format knob picks JSON or text output.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{}
	if cfg.IsDevelopment() {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
