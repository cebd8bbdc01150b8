package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/airwarehouse/internal/core"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")
	logger.Debug("hidden")
	logger.Info("shown", "table", "airlines")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["msg"] != "shown" || entry["table"] != "airlines" {
		t.Errorf("entry = %v", entry)
	}
}

// withDefault swaps the default logger for the test.
func withDefault(t *testing.T, l *slog.Logger) {
	t.Helper()
	prev := slog.Default()
	slog.SetDefault(l)
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestFromContext_AddsIDs(t *testing.T) {
	var buf bytes.Buffer
	withDefault(t, New(&buf, "info", "text"))

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	ctx = core.ContextWithBatchID(ctx, "batch-7")
	FromContext(ctx).Info("hello")

	out := buf.String()
	if !strings.Contains(out, "request_id=req-42") || !strings.Contains(out, "batch_id=batch-7") {
		t.Errorf("log line missing ids: %q", out)
	}
}
