package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func captureDefault(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	slog.SetDefault(slog.New(NewHandler(&buf, "debug", "text")))
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFromContext_AddsRequestAndSessionIDs(t *testing.T) {
	buf := captureDefault(t)

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	ctx = WithSessionID(ctx, "sess-7")

	FromContext(ctx).Info("hello")

	out := buf.String()
	if !strings.Contains(out, "request_id=req-42") {
		t.Errorf("missing request_id in %q", out)
	}
	if !strings.Contains(out, "session_id=sess-7") {
		t.Errorf("missing session_id in %q", out)
	}
}

func TestFromContext_BareContext(t *testing.T) {
	buf := captureDefault(t)

	WithFields(context.Background(), "file", "a.csv").Info("plain")

	out := buf.String()
	if strings.Contains(out, "request_id") || strings.Contains(out, "session_id") {
		t.Errorf("unexpected ids in %q", out)
	}
	if !strings.Contains(out, "file=a.csv") {
		t.Errorf("missing field in %q", out)
	}
}

func TestNewHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler(&buf, "info", "json")).Debug("hidden")
	slog.New(NewHandler(&buf, "info", "JSON")).Info("shown", "k", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written at info level: %q", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected JSON output, got %q", out)
	}
}

func TestSetup_WritesToFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "erpload.log")
	closer := Setup(Options{Level: "info", Format: "json", File: path, MaxSizeMB: 1})

	slog.Info("to file", "n", 1)
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"to file"`) {
		t.Errorf("log file = %q, want the logged line", data)
	}
}
