package monitor

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"shopmate/pkg/llm"
)

func TestCustomHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCustomHandler(&buf, slog.HandlerOptions{Level: slog.LevelDebug})).With("session", "s1")

	ctx := llm.WithRequestID(context.Background(), "req-42")
	logger.InfoContext(ctx, "Executing tool", "name", "list_products", "limit", 5)

	line := buf.String()
	for _, want := range []string{"[INFO] [req-42] Executing tool", `session="s1"`, `name="list_products"`, "limit=5"} {
		if !strings.Contains(line, want) {
			t.Errorf("log line missing %q: %s", want, line)
		}
	}
}

func TestCustomHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	lv := new(slog.LevelVar)
	lv.Set(slog.LevelWarn)
	logger := slog.New(NewCustomHandler(&buf, slog.HandlerOptions{Level: lv}))

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn: %s", buf.String())
	}

	lv.Set(slog.LevelDebug)
	logger.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("debug should pass after level change: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCLIMonitor(t *testing.T) {
	var buf bytes.Buffer
	m := NewCLIMonitorTo(&buf)

	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	m.OnMessage(MonitorMessage{Timestamp: ts, MessageType: KindUser, ChannelID: "web", Username: "alice", Content: "hi", Todos: 2})
	m.OnMessage(MonitorMessage{Timestamp: ts, MessageType: KindAssistant, Content: "hello"})

	out := buf.String()
	if !strings.Contains(out, "[web/alice] hi (2 todos)") || !strings.Contains(out, "[AI] hello") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
