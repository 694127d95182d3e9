// Package diag provides structured progress/trace logging for the
// compile pipeline and CLI, and stamps each session with a trace ID.
package diag

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

// Level is a logging verbosity threshold.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps RPLUS_LOG_LEVEL's string value to a Level, defaulting
// to LevelInfo on an empty or unrecognized value.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// levelFromEnv reads RPLUS_LOG_LEVEL, the ambient verbosity knob.
func levelFromEnv() Level {
	return ParseLevel(os.Getenv("RPLUS_LOG_LEVEL"))
}

// Logger stamps messages from one named component with a session trace
// ID, gating them against the ambient RPLUS_LOG_LEVEL threshold before
// handing them to commonlog.
type Logger struct {
	name    string
	traceID string
	level   Level
}

// NewLogger constructs a logger for a named component, minting a fresh
// trace ID for the session it belongs to.
func NewLogger(name string) *Logger {
	return &Logger{
		name:    name,
		traceID: uuid.NewString(),
		level:   levelFromEnv(),
	}
}

// WithTrace returns a logger for name sharing an existing trace ID,
// for components that should appear under one session's trace.
func WithTrace(name, traceID string) *Logger {
	return &Logger{name: name, traceID: traceID, level: levelFromEnv()}
}

// TraceID returns the session trace ID this logger stamps messages with.
func (l *Logger) TraceID() string {
	return l.traceID
}

func (l *Logger) format(msg string) string {
	return fmt.Sprintf("[%s] %s: %s", l.traceID, l.name, msg)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.level > LevelDebug {
		return
	}
	commonlog.NewDebugMessage(0, l.format(fmt.Sprintf(format, args...)))
}

func (l *Logger) Infof(format string, args ...interface{}) {
	if l.level > LevelInfo {
		return
	}
	commonlog.NewInfoMessage(0, l.format(fmt.Sprintf(format, args...)))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	if l.level > LevelWarn {
		return
	}
	commonlog.NewWarningMessage(0, l.format(fmt.Sprintf(format, args...)))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	commonlog.NewErrorMessage(0, l.format(fmt.Sprintf(format, args...)))
}

// Step logs one stage of the compile pipeline's progress report.
func (l *Logger) Step(n, total int, format string, args ...interface{}) {
	l.Infof("[%d/%d] %s", n, total, fmt.Sprintf(format, args...))
}
