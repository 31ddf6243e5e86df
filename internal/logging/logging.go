package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options controls logger setup. Zero value means: level from LOG_LEVEL,
// errors only by default, written to stderr.
type Options struct {
	Level   string
	Verbose bool
	Output  io.Writer
}

func Init(opts Options) {
	level := slog.LevelError // default: production only shows errors

	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		if parsed, ok := ParseLevel(l); ok {
			level = parsed
		}
	}
	if opts.Level != "" {
		if parsed, ok := ParseLevel(opts.Level); ok {
			level = parsed
		}
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	slog.SetDefault(New(out, level))
}

func New(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development", "debug", "trace":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error", "production", "prod":
		return slog.LevelError, true
	}
	return 0, false
}
