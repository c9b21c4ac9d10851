// Package logging provides structured logging with trace and component
// scoping for the task pipeline.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Logger is the logging interface used throughout the pipeline.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})

	// Context-aware variants pick up the trace ID stored in the context.
	DebugContext(ctx context.Context, msg string, fields ...interface{})
	InfoContext(ctx context.Context, msg string, fields ...interface{})
	WarnContext(ctx context.Context, msg string, fields ...interface{})
	ErrorContext(ctx context.Context, msg string, fields ...interface{})

	WithTraceID(traceID string) Logger
	WithComponent(component string) Logger
}

// Level represents logging levels
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// ParseLevel converts a level name to a Level, defaulting to INFO.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ContextKey represents keys used in context for trace IDs
type ContextKey string

// TraceIDKey is the context key carrying the request trace ID.
const TraceIDKey ContextKey = "trace_id"

// WithTraceID stores a trace ID in the context for the *Context logging
// variants to pick up.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// entry is the JSON shape of one log line.
type entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	TraceID   string                 `json:"trace_id,omitempty"`
	Component string                 `json:"component,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// StructuredLogger writes JSON log lines, or colorized console lines when
// JSON output is disabled.
type StructuredLogger struct {
	level     Level
	traceID   string
	component string
	useJSON   bool
}

// NewLogger creates a new structured logger. Output format is controlled
// by the LOG_JSON environment variable (defaults to JSON).
func NewLogger(level Level) Logger {
	return &StructuredLogger{
		level:   level,
		useJSON: envBool("LOG_JSON", true),
	}
}

func envBool(key string, def bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val == "true" || val == "1"
}

// WithTraceID creates a new logger bound to a trace ID.
func (l *StructuredLogger) WithTraceID(traceID string) Logger {
	clone := *l
	clone.traceID = traceID
	return &clone
}

// WithComponent creates a new logger bound to a component name.
func (l *StructuredLogger) WithComponent(component string) Logger {
	clone := *l
	clone.component = component
	return &clone
}

// Debug logs a debug message
func (l *StructuredLogger) Debug(msg string, fields ...interface{}) { l.log(DEBUG, msg, fields) }

// Info logs an info message
func (l *StructuredLogger) Info(msg string, fields ...interface{}) { l.log(INFO, msg, fields) }

// Warn logs a warning message
func (l *StructuredLogger) Warn(msg string, fields ...interface{}) { l.log(WARN, msg, fields) }

// Error logs an error message
func (l *StructuredLogger) Error(msg string, fields ...interface{}) { l.log(ERROR, msg, fields) }

// DebugContext logs a debug message with the context's trace ID
func (l *StructuredLogger) DebugContext(ctx context.Context, msg string, fields ...interface{}) {
	l.fromContext(ctx).log(DEBUG, msg, fields)
}

// InfoContext logs an info message with the context's trace ID
func (l *StructuredLogger) InfoContext(ctx context.Context, msg string, fields ...interface{}) {
	l.fromContext(ctx).log(INFO, msg, fields)
}

// WarnContext logs a warning message with the context's trace ID
func (l *StructuredLogger) WarnContext(ctx context.Context, msg string, fields ...interface{}) {
	l.fromContext(ctx).log(WARN, msg, fields)
}

// ErrorContext logs an error message with the context's trace ID
func (l *StructuredLogger) ErrorContext(ctx context.Context, msg string, fields ...interface{}) {
	l.fromContext(ctx).log(ERROR, msg, fields)
}

func (l *StructuredLogger) fromContext(ctx context.Context) *StructuredLogger {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
		clone := *l
		clone.traceID = traceID
		return &clone
	}
	return l
}

func (l *StructuredLogger) log(level Level, msg string, kv []interface{}) {
	if level < l.level {
		return
	}

	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
		TraceID:   l.traceID,
		Component: l.component,
		Fields:    toFields(kv),
	}

	if l.useJSON {
		if data, err := json.Marshal(e); err == nil {
			fmt.Fprintln(os.Stderr, string(data))
		}
		return
	}
	l.console(level, e)
}

func (l *StructuredLogger) console(level Level, e entry) {
	paint := color.New(color.FgWhite)
	switch level {
	case DEBUG:
		paint = color.New(color.FgCyan)
	case INFO:
		paint = color.New(color.FgGreen)
	case WARN:
		paint = color.New(color.FgYellow)
	case ERROR:
		paint = color.New(color.FgRed)
	}

	var b strings.Builder
	b.WriteString(e.Timestamp)
	b.WriteString(" ")
	b.WriteString(paint.Sprintf("%-5s", e.Level))
	if e.Component != "" {
		b.WriteString(" [" + e.Component + "]")
	}
	b.WriteString(" " + e.Message)
	if e.TraceID != "" {
		b.WriteString(" trace=" + e.TraceID)
	}
	for k, v := range e.Fields {
		b.WriteString(fmt.Sprintf(" %s=%v", k, v))
	}
	fmt.Fprintln(os.Stderr, b.String())
}

// toFields converts alternating key/value pairs to a map. A trailing key
// without a value is recorded as-is.
func toFields(kv []interface{}) map[string]interface{} {
	if len(kv) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprintf("arg%d", i)
		}
		if i+1 < len(kv) {
			fields[key] = kv[i+1]
		} else {
			fields[key] = "(missing)"
		}
	}
	return fields
}
