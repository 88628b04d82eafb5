// Package logging provides structured logging types and interfaces
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l LogLevel) String() string {
	if l < DebugLevel || l > ErrorLevel {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

// Logger defines the interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	WithFields(fields ...Field) Logger
	WithContext(ctx context.Context) Logger
}

// Format selects the zap encoder used for output
type Format string

const (
	ConsoleFormat Format = "console"
	JSONFormat    Format = "json"
)

// LogConfig holds logger configuration
type LogConfig struct {
	Level  LogLevel
	Format Format
	Output io.Writer
	Name   string
}

// ParseLevel maps LOG_LEVEL values onto a LogLevel. Unknown values mean InfoLevel.
func ParseLevel(levelStr string) LogLevel {
	name := strings.ToUpper(strings.TrimSpace(levelStr))
	if name == "WARNING" {
		name = "WARN"
	}
	for i, n := range levelNames {
		if n == name {
			return LogLevel(i)
		}
	}
	return InfoLevel
}

// ParseFormat converts a string to a Format, defaulting to ConsoleFormat
func ParseFormat(format string) Format {
	if strings.EqualFold(strings.TrimSpace(format), string(JSONFormat)) {
		return JSONFormat
	}
	return ConsoleFormat
}

// DefaultLogConfig returns the configuration described by LOG_LEVEL and LOG_FORMAT
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  ParseLevel(os.Getenv("LOG_LEVEL")),
		Format: ParseFormat(os.Getenv("LOG_FORMAT")),
	}
}

type contextKey string

// RequestIDKey is the context key under which the HTTP middleware stores the request id
const RequestIDKey contextKey = "request_id"

// ContextWithRequestID returns a copy of ctx carrying the request id
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestIDFromContext returns the request id stored by ContextWithRequestID
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

var (
	globalLogger Logger
	globalMu     sync.RWMutex
	initOnce     sync.Once
)

func initialize() {
	globalLogger = NewDefaultLogger()
}

// SetGlobalLogger sets the global logger instance
func SetGlobalLogger(logger Logger) {
	initOnce.Do(func() {})
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() Logger {
	initOnce.Do(initialize)
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Debug logs a debug message using the global logger
func Debug(msg string, fields ...Field) {
	GetGlobalLogger().Debug(msg, fields...)
}

// Info logs an info message using the global logger
func Info(msg string, fields ...Field) {
	GetGlobalLogger().Info(msg, fields...)
}

// Warn logs a warning message using the global logger
func Warn(msg string, fields ...Field) {
	GetGlobalLogger().Warn(msg, fields...)
}

// Error logs an error message using the global logger
func Error(msg string, err error, fields ...Field) {
	GetGlobalLogger().Error(msg, err, fields...)
}
