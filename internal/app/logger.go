package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the service logger. JSON output is for production log
// shipping; the text handler keeps local development readable. Every record
// carries the service name so shared log streams stay attributable.
func NewLogger(cfg *Config) *slog.Logger {
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})
	} else {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	return slog.New(handler).With(slog.String("service", "harvestlink"))
}
