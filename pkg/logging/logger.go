// Package logging writes structured JSON-line events for the engine and its
// transports.
package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is an event severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var levelOrder = []Level{LevelDebug, LevelInfo, LevelWarn, LevelError}

func (lv Level) rank() int {
	for i, known := range levelOrder {
		if lv == known {
			return i
		}
	}
	return 1
}

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(raw string) Level {
	lv := Level(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range levelOrder {
		if lv == known {
			return lv
		}
	}
	return LevelInfo
}

// Category names the subsystem an event came from.
type Category string

const (
	CategoryBinding   Category = "binding"
	CategoryAdapter   Category = "adapter"
	CategoryRegistry  Category = "registry"
	CategoryAnimation Category = "animation"
	CategoryKanban    Category = "kanban"
	CategoryEngine    Category = "engine"
	CategoryTransport Category = "transport"
	CategoryIntent    Category = "intent"
	CategoryConfig    Category = "config"
)

// Event is one log line.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Category  Category       `json:"category"`
	EventType string         `json:"type"`
	PageID    string         `json:"page_id,omitempty"`
	WidgetID  string         `json:"widget_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// sinks are shared by a logger and every ForPage child.
type sinks struct {
	mu     sync.Mutex
	out    io.Writer
	errors io.WriteCloser
	min    Level
}

// Logger writes structured events as JSON lines. A nil *Logger discards
// everything, so components can hold an optional logger without guards.
type Logger struct {
	sinks  *sinks
	pageID string
}

// New creates a logger writing every event to out.
func New(out io.Writer) *Logger {
	if out == nil {
		out = io.Discard
	}
	return &Logger{sinks: &sinks{out: out, min: LevelInfo}}
}

// NewFileLogger creates a logger that writes to out and additionally
// appends error events to <baseDir>/errors.jsonl.
func NewFileLogger(out io.Writer, baseDir string) (*Logger, error) {
	l := New(out)
	if strings.TrimSpace(baseDir) == "" {
		return l, nil
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", baseDir, err)
	}
	path := filepath.Join(baseDir, "errors.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	l.sinks.errors = f
	return l, nil
}

// SetMinLevel drops events below level, for this logger and its children.
func (l *Logger) SetMinLevel(level Level) {
	if l == nil {
		return
	}
	l.sinks.mu.Lock()
	l.sinks.min = level
	l.sinks.mu.Unlock()
}

// ForPage returns a logger sharing the same outputs that stamps every event
// with the given page id.
func (l *Logger) ForPage(pageID string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{sinks: l.sinks, pageID: pageID}
}

// Log writes event to the main output, and error events to the error file.
func (l *Logger) Log(event Event) error {
	if l == nil {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.PageID == "" {
		event.PageID = l.pageID
	}

	s := l.sinks
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.Level.rank() < s.min.rank() {
		return nil
	}
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode log event: %w", err)
	}
	line = append(line, '\n')
	if _, err := s.out.Write(line); err != nil {
		return fmt.Errorf("write log event: %w", err)
	}
	if event.Level == LevelError && s.errors != nil {
		if _, err := s.errors.Write(line); err != nil {
			return fmt.Errorf("write error log: %w", err)
		}
	}
	return nil
}

func (l *Logger) emit(level Level, category Category, eventType, widgetID, message string, details map[string]any) {
	_ = l.Log(Event{
		Level:     level,
		Category:  category,
		EventType: eventType,
		WidgetID:  widgetID,
		Message:   message,
		Details:   details,
	})
}

func (l *Logger) Debug(category Category, eventType, widgetID, message string, details map[string]any) {
	l.emit(LevelDebug, category, eventType, widgetID, message, details)
}

func (l *Logger) Info(category Category, eventType, widgetID, message string, details map[string]any) {
	l.emit(LevelInfo, category, eventType, widgetID, message, details)
}

func (l *Logger) Warn(category Category, eventType, widgetID, message string, details map[string]any) {
	l.emit(LevelWarn, category, eventType, widgetID, message, details)
}

func (l *Logger) Error(category Category, eventType, widgetID, message string, details map[string]any) {
	l.emit(LevelError, category, eventType, widgetID, message, details)
}

// Close closes the error log file, if any.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	s := l.sinks
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errors == nil {
		return nil
	}
	err := s.errors.Close()
	s.errors = nil
	return err
}

// ReadRecentEvents returns the last count events of a JSON-lines log.
// Lines that do not decode are skipped.
func ReadRecentEvents(logPath string, count int) ([]Event, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", logPath, err)
	}
	defer f.Close()

	if count <= 0 {
		return nil, nil
	}
	ring := make([]Event, 0, count)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var ev Event
		if json.Unmarshal(sc.Bytes(), &ev) != nil {
			continue
		}
		if len(ring) == count {
			copy(ring, ring[1:])
			ring = ring[:count-1]
		}
		ring = append(ring, ev)
	}
	if err := sc.Err(); err != nil {
		return ring, fmt.Errorf("read %s: %w", logPath, err)
	}
	return ring, nil
}
