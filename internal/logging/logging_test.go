package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{" DEV ", slog.LevelDebug, true},
		{"info", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"prod", slog.LevelError, true},
		{"loud", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("ParseLevel(%q): expected (%v, %v), got (%v, %v)", tt.in, tt.want, tt.ok, got, ok)
		}
	}
}

// Not parallel: Init and the pion bridge both touch the default logger.
func TestInitAndPionBridge(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	Init(Options{Level: "error", Verbose: true, Output: &buf})

	logger := PionFactory().NewLogger("ice")
	logger.Debugf("gathering %d candidates", 3)
	logger.Trace("too chatty")

	out := buf.String()
	if !strings.Contains(out, "gathering 3 candidates") {
		t.Fatalf("expected debug line from pion logger, got %q", out)
	}
	if !strings.Contains(out, "scope=ice") {
		t.Fatalf("expected scope attribute, got %q", out)
	}
	if strings.Contains(out, "too chatty") {
		t.Fatalf("trace output should be filtered at debug level, got %q", out)
	}
}
