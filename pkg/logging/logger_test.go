package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []Event {
	t.Helper()
	var events []Event
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestLoggerWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)

	logger.Warn(CategoryBinding, "backend_unavailable", "cpu-chart", "rendering backend missing", map[string]any{"kind": "line_chart"})

	events := decodeLines(t, &buf)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Level != LevelWarn || ev.Category != CategoryBinding || ev.EventType != "backend_unavailable" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.WidgetID != "cpu-chart" {
		t.Errorf("WidgetID = %q", ev.WidgetID)
	}
	if ev.Timestamp.IsZero() {
		t.Error("timestamp should be stamped")
	}
}

func TestLoggerMinLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)

	logger.Debug(CategoryRegistry, "deliver", "w", "", nil)
	if buf.Len() != 0 {
		t.Fatal("debug should be filtered at default info level")
	}

	logger.SetMinLevel(LevelDebug)
	logger.Debug(CategoryRegistry, "deliver", "w", "", nil)
	if len(decodeLines(t, &buf)) != 1 {
		t.Fatal("debug should be written after lowering min level")
	}
}

func TestForPageStampsPageID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf).ForPage("ops")

	logger.Info(CategoryEngine, "mounted", "w1", "", nil)

	events := decodeLines(t, &buf)
	if len(events) != 1 || events[0].PageID != "ops" {
		t.Fatalf("expected page id on event, got %+v", events)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Info(CategoryEngine, "noop", "", "", nil)
	logger.SetMinLevel(LevelDebug)
	if logger.ForPage("p") != nil {
		t.Error("ForPage on nil logger should stay nil")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close on nil logger: %v", err)
	}
}

func TestFileLoggerRoutesErrors(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	logger, err := NewFileLogger(&buf, dir)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}

	logger.Info(CategoryEngine, "started", "", "", nil)
	logger.Error(CategoryTransport, "write_failed", "", "socket closed", nil)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	events, err := ReadRecentEvents(filepath.Join(dir, "errors.jsonl"), 10)
	if err != nil {
		t.Fatalf("ReadRecentEvents: %v", err)
	}
	if len(events) != 1 || events[0].EventType != "write_failed" {
		t.Fatalf("expected only the error event in errors.jsonl, got %+v", events)
	}
	if len(decodeLines(t, &buf)) != 2 {
		t.Fatal("both events should reach the main writer")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": LevelDebug,
		"WARN":  LevelWarn,
		"error": LevelError,
		"":      LevelInfo,
		"loud":  LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestForPageSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	root := New(&buf)
	page := root.ForPage("ops")
	root.SetMinLevel(LevelError)

	page.Warn(CategoryEngine, "slow", "", "", nil)
	if buf.Len() != 0 {
		t.Fatal("page logger should follow the root level")
	}
}

func TestReadRecentEventsKeepsTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")
	var lines []string
	for _, typ := range []string{"a", "b", "c"} {
		lines = append(lines, `{"level":"info","type":"`+typ+`"}`)
	}
	lines = append(lines[:1], append([]string{"not json"}, lines[1:]...)...)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	events, err := ReadRecentEvents(path, 2)
	if err != nil {
		t.Fatalf("ReadRecentEvents: %v", err)
	}
	if len(events) != 2 || events[0].EventType != "b" || events[1].EventType != "c" {
		t.Fatalf("expected the last two events, got %+v", events)
	}
}
