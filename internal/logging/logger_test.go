package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"lumen/internal/services"
)

func newTestLogger(buf *bytes.Buffer, level string) *slog.Logger {
	lvl := new(slog.LevelVar)
	lvl.Set(parseLevel(level))
	return slog.New(newConsoleHandler(buf, lvl))
}

func TestConsoleHandlerFormatsLine(t *testing.T) {
	var buf bytes.Buffer
	logger := NewComponentLogger(newTestLogger(&buf, "info"), "session")

	logger.Info("stage complete", String("stage", "generate"), Int("sources", 3))

	line := buf.String()
	if !strings.Contains(line, "INFO session: stage complete") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "stage=generate") || !strings.Contains(line, "sources=3") {
		t.Fatalf("missing attrs in line: %q", line)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, "info")

	logger.Info("hit", String("title", "Water Lilies"))

	if !strings.Contains(buf.String(), `title="Water Lilies"`) {
		t.Fatalf("expected quoted value, got %q", buf.String())
	}
}

func TestConsoleHandlerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, "warn")

	logger.Info("should be dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Fatalf("info line leaked through warn level: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsSessionFields(t *testing.T) {
	var buf bytes.Buffer
	base := newTestLogger(&buf, "info")

	ctx := services.WithSessionID(context.Background(), "sess-1")
	ctx = services.WithStage(ctx, "cache_lookup")
	WithContext(ctx, base).Info("probe")

	line := buf.String()
	if !strings.Contains(line, "session_id=sess-1") || !strings.Contains(line, "stage=cache_lookup") {
		t.Fatalf("context fields missing: %q", line)
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	logger.Error("nothing happens", Error(nil))
}
