// Package testutil holds shared test doubles used across packages.
package testutil

import (
	"sync"

	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
)

// CaptureLogger implements logging.Logger and records every entry, so tests
// can assert on what was logged. Safe for concurrent use.
type CaptureLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

// LogEntry is a single captured log line.
type LogEntry struct {
	Level   string
	Message string
	Fields  []logging.Field
}

// NewCaptureLogger returns an empty CaptureLogger.
func NewCaptureLogger() *CaptureLogger {
	return &CaptureLogger{}
}

func (c *CaptureLogger) log(level, msg string, fields []logging.Field) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, LogEntry{Level: level, Message: msg, Fields: fields})
}

func (c *CaptureLogger) Debug(msg string, fields ...logging.Field) { c.log("debug", msg, fields) }
func (c *CaptureLogger) Info(msg string, fields ...logging.Field)  { c.log("info", msg, fields) }
func (c *CaptureLogger) Warn(msg string, fields ...logging.Field)  { c.log("warn", msg, fields) }
func (c *CaptureLogger) Error(msg string, fields ...logging.Field) { c.log("error", msg, fields) }
func (c *CaptureLogger) Fatal(msg string, fields ...logging.Field) { c.log("fatal", msg, fields) }

// With returns the same logger; captured entries do not track child fields.
func (c *CaptureLogger) With(fields ...logging.Field) logging.Logger { return c }

// Named returns the same logger; names are not tracked.
func (c *CaptureLogger) Named(name string) logging.Logger { return c }

// Entries returns a copy of everything logged so far.
func (c *CaptureLogger) Entries() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LogEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Clear drops all captured entries.
func (c *CaptureLogger) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = c.entries[:0]
}

// Has reports whether an entry with the given level and message was logged.
func (c *CaptureLogger) Has(level, msg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.Level == level && e.Message == msg {
			return true
		}
	}
	return false
}
