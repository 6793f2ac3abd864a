// Package telemetry is the structured logger used throughout the engine,
// the comm handler, and the public client. Every log line is a single
// JSON object on its own line so a function's stdout stays parseable by
// whatever platform is hosting it.
package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"stepflow/internal/sdkerr"
)

// Level orders log severities; a Logger drops anything below its
// configured Level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is the JSON shape written for each log call.
type Entry struct {
	Time      time.Time         `json:"time"`
	Level     string            `json:"level"`
	Component string            `json:"component,omitempty"`
	Message   string            `json:"message"`
	Code      string            `json:"code,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Logger writes redacted, structured JSON log entries. It is safe for
// concurrent use; a single Logger is typically shared for the lifetime
// of a process and narrowed per invocation via WithComponent/WithField.
type Logger struct {
	mu        sync.Mutex
	w         io.Writer
	level     Level
	component string
	fields    map[string]string
}

// New returns a Logger writing to w at the given level.
func New(w io.Writer, level Level) *Logger {
	return &Logger{w: w, level: level}
}

// Default returns a Logger writing to stderr, honoring STEPFLOW_LOG_LEVEL
// (debug|info|warn|error, defaulting to info).
func Default() *Logger {
	return New(os.Stderr, levelFromEnv())
}

func levelFromEnv() Level {
	switch os.Getenv("STEPFLOW_LOG_LEVEL") {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// WithComponent returns a copy of the logger tagged with component, e.g.
// "engine" or "commhandler".
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{w: l.w, level: l.level, component: component, fields: cloneFields(l.fields)}
}

// WithField returns a copy of the logger with an additional persistent
// field, redacted the same way ad-hoc field values are.
func (l *Logger) WithField(key, value string) *Logger {
	f := cloneFields(l.fields)
	f[key] = sdkerr.Redact(value)
	return &Logger{w: l.w, level: l.level, component: l.component, fields: f}
}

func cloneFields(f map[string]string) map[string]string {
	out := make(map[string]string, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	return out
}

func (l *Logger) log(level Level, code, msg string) {
	if level < l.level {
		return
	}
	entry := Entry{
		Time:      time.Now().UTC(),
		Level:     level.String(),
		Component: l.component,
		Message:   sdkerr.Redact(msg),
		Code:      code,
		Fields:    l.fields,
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, string(b))
}

func (l *Logger) Debug(msg string)                 { l.log(LevelDebug, "", msg) }
func (l *Logger) Debugf(f string, a ...any)         { l.log(LevelDebug, "", fmt.Sprintf(f, a...)) }
func (l *Logger) Info(msg string)                   { l.log(LevelInfo, "", msg) }
func (l *Logger) Infof(f string, a ...any)          { l.log(LevelInfo, "", fmt.Sprintf(f, a...)) }
func (l *Logger) Warn(msg string)                   { l.log(LevelWarn, "", msg) }
func (l *Logger) Warnf(f string, a ...any)          { l.log(LevelWarn, "", fmt.Sprintf(f, a...)) }
func (l *Logger) Error(msg string)                  { l.log(LevelError, "", msg) }
func (l *Logger) Errorf(f string, a ...any)         { l.log(LevelError, "", fmt.Sprintf(f, a...)) }

// WarnCode logs a warning tagged with a stable machine-readable code,
// e.g. "AUTOMATIC_PARALLEL_INDEXING", so downstream tooling can filter
// on it without parsing the free-text message.
func (l *Logger) WarnCode(code, msg string) { l.log(LevelWarn, code, msg) }

// WithError returns a LogBuilder seeded with err's safe representation,
// for chaining into Info/Warn/Error: logger.WithError(err).Error("step failed").
func (l *Logger) WithError(err error) *LogBuilder {
	return &LogBuilder{logger: l, errText: sdkerr.FormatSafe(err)}
}

// LogBuilder chains an error onto a log line without forcing every
// caller to format it manually.
type LogBuilder struct {
	logger  *Logger
	errText string
}

func (b *LogBuilder) Error(msg string) { b.logger.log(LevelError, "", msg+": "+b.errText) }
func (b *LogBuilder) Warn(msg string)  { b.logger.log(LevelWarn, "", msg+": "+b.errText) }
