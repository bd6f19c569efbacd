package testutil

import (
	"fmt"
	"strings"
	"sync"
)

// LogLine is one message captured by a RecordingLogger.
type LogLine struct {
	Level   string
	Message string
	Args    []any
}

// RecordingLogger keeps every message it is given. Safe for concurrent use.
type RecordingLogger struct {
	mu    sync.Mutex
	lines []LogLine
}

func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

func (l *RecordingLogger) Debug(msg string, args ...any) { l.record("DEBUG", msg, args) }
func (l *RecordingLogger) Info(msg string, args ...any)  { l.record("INFO", msg, args) }
func (l *RecordingLogger) Warn(msg string, args ...any)  { l.record("WARN", msg, args) }
func (l *RecordingLogger) Error(msg string, args ...any) { l.record("ERROR", msg, args) }

func (l *RecordingLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, LogLine{Level: level, Message: msg, Args: args})
}

// Lines returns a copy of everything logged so far.
func (l *RecordingLogger) Lines() []LogLine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogLine(nil), l.lines...)
}

// Messages returns the messages logged at level, in order.
func (l *RecordingLogger) Messages(level string) []string {
	var out []string
	for _, line := range l.Lines() {
		if line.Level == level {
			out = append(out, line.Message)
		}
	}
	return out
}

// String renders the log for failure messages.
func (l *RecordingLogger) String() string {
	var b strings.Builder
	for _, line := range l.Lines() {
		fmt.Fprintf(&b, "%s %s %v\n", line.Level, line.Message, line.Args)
	}
	return b.String()
}
