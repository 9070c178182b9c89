// Package logger writes one JSON object per line, the format every component
// of the service logs in.
package logger

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

const (
	LevelInfo  = "info"
	LevelError = "error"
)

// Logger is safe for concurrent use.
type Logger struct {
	mu  sync.Mutex
	w   io.Writer
	loc *time.Location
	now func() time.Time
}

// New returns a Logger writing to w with timestamps in loc.
// A nil loc means UTC.
func New(w io.Writer, loc *time.Location) *Logger {
	if loc == nil {
		loc = time.UTC
	}
	return &Logger{w: w, loc: loc, now: time.Now}
}

// Default logs to stdout in UTC.
func Default() *Logger {
	return New(os.Stdout, time.UTC)
}

// Nop discards everything.
func Nop() *Logger {
	return New(io.Discard, time.UTC)
}

// Location is the timezone used for the ts field.
func (l *Logger) Location() *time.Location {
	return l.loc
}

// Log writes data as a single line. ts is always set; level defaults to
// "error" when status is "error" and to "info" otherwise.
func (l *Logger) Log(data map[string]any) {
	entry := make(map[string]any, len(data)+2)
	for k, v := range data {
		entry[k] = v
	}
	entry["ts"] = l.now().In(l.loc).Format(time.RFC3339Nano)
	if _, ok := entry["level"]; !ok {
		if entry["status"] == "error" {
			entry["level"] = LevelError
		} else {
			entry["level"] = LevelInfo
		}
	}

	b, err := json.Marshal(entry)
	if err != nil {
		b, _ = json.Marshal(map[string]any{
			"ts":    entry["ts"],
			"level": LevelError,
			"event": "log_marshal_failed",
			"error": err.Error(),
		})
	}
	b = append(b, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.w.Write(b)
}

// Info logs event for component at info level.
func (l *Logger) Info(component, event string, fields map[string]any) {
	l.Log(with(fields, component, event, LevelInfo))
}

// Error logs event for component at error level, attaching err when non-nil.
func (l *Logger) Error(component, event string, err error, fields map[string]any) {
	data := with(fields, component, event, LevelError)
	if err != nil {
		data["error_message"] = err.Error()
	}
	l.Log(data)
}

func with(fields map[string]any, component, event, level string) map[string]any {
	data := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		data[k] = v
	}
	data["component"] = component
	data["event"] = event
	data["level"] = level
	return data
}
