// Package logging provides leveled logging and trajectory event traces for
// axelrod. It offers two outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - An EventLogger appending JSONL run events to <dir>/events.jsonl
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug. At this level every
// trajectory of a sweep is logged individually.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps "info", "debug" or "trace" (case-insensitive) to a
// slog.Level. Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether s is a recognised level name or empty.
func ValidLevel(s string) bool {
	switch strings.ToLower(s) {
	case "", "info", "debug", "trace":
		return true
	}
	return false
}

// NewLogger creates a leveled text logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if l, ok := a.Value.Any().(slog.Level); ok && l == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// EventLogger appends structured run events to a JSONL file. It is safe for
// concurrent use, and a nil *EventLogger is a valid no-op logger.
type EventLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewEventLogger opens dir/events.jsonl for append at debug or trace level.
// At info level, or if the file cannot be opened, it returns nil.
func NewEventLogger(dir string, level string) *EventLogger {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, "events.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return &EventLogger{file: f}
}

// Log writes one event line with "event" and "time" keys added. The
// caller's map is not modified.
func (el *EventLogger) Log(event string, fields map[string]any) {
	if el == nil || el.file == nil {
		return
	}

	entry := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		entry[k] = v
	}
	entry["event"] = event
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	el.mu.Lock()
	defer el.mu.Unlock()
	if el.file != nil {
		_, _ = el.file.Write(data)
	}
}

// Close closes the underlying file. Safe on a nil receiver.
func (el *EventLogger) Close() {
	if el == nil {
		return
	}
	el.mu.Lock()
	defer el.mu.Unlock()
	if el.file != nil {
		el.file.Close()
		el.file = nil
	}
}
