package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// LogEntry is one captured log record with its attributes flattened,
// including those bound with Logger.With.
type LogEntry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

type logSink struct {
	mu      sync.Mutex
	entries []LogEntry
}

// LogCapture is a slog.Handler that records every entry for assertions.
// Handlers derived with WithAttrs share the parent's entries.
type LogCapture struct {
	sink  *logSink
	attrs []slog.Attr
	t     *testing.T
}

// NewTestLogger returns a logger that records into the returned capture and
// mirrors each entry to t.Log.
func NewTestLogger(t *testing.T) (*slog.Logger, *LogCapture) {
	c := &LogCapture{sink: &logSink{}, t: t}
	return slog.New(c), c
}

func (c *LogCapture) Enabled(context.Context, slog.Level) bool { return true }

func (c *LogCapture) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(c.attrs)+r.NumAttrs())
	for _, a := range c.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	c.sink.mu.Lock()
	c.sink.entries = append(c.sink.entries, LogEntry{Level: r.Level, Message: r.Message, Attrs: attrs})
	c.sink.mu.Unlock()

	if c.t != nil {
		c.t.Logf("[%s] %s %v", r.Level, r.Message, attrs)
	}
	return nil
}

func (c *LogCapture) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := *c
	out.attrs = append(append([]slog.Attr(nil), c.attrs...), attrs...)
	return &out
}

// WithGroup is a no-op; grouped keys are recorded unqualified.
func (c *LogCapture) WithGroup(string) slog.Handler { return c }

// Entries returns a copy of everything logged so far.
func (c *LogCapture) Entries() []LogEntry {
	c.sink.mu.Lock()
	defer c.sink.mu.Unlock()
	return append([]LogEntry(nil), c.sink.entries...)
}

// Find returns the first entry at level whose message contains msg.
func (c *LogCapture) Find(level slog.Level, msg string) (LogEntry, bool) {
	for _, e := range c.Entries() {
		if e.Level == level && strings.Contains(e.Message, msg) {
			return e, true
		}
	}
	return LogEntry{}, false
}

// ContainsMessage reports whether any entry's message contains msg.
func (c *LogCapture) ContainsMessage(msg string) bool {
	for _, e := range c.Entries() {
		if strings.Contains(e.Message, msg) {
			return true
		}
	}
	return false
}

// RequireLog fails the test unless an entry at level contains msg, and
// returns that entry.
func RequireLog(t *testing.T, c *LogCapture, level slog.Level, msg string) LogEntry {
	t.Helper()
	e, ok := c.Find(level, msg)
	if !ok {
		for _, got := range c.Entries() {
			t.Logf("captured [%s] %s %v", got.Level, got.Message, got.Attrs)
		}
		t.Fatalf("no %s log containing %q", level, msg)
	}
	return e
}
