package logging

import (
	"context"
	"fmt"
	"os"
)

// NewDefaultLogger creates a stdout logger configured from the environment
func NewDefaultLogger() Logger {
	logger, err := NewZapLogger(DefaultLogConfig())
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default zap logger: %v", err))
	}
	return logger
}

// InitGlobalLogger installs the process logger from LOG_LEVEL, LOG_FORMAT and LOG_FILE.
// Output goes to stdout unless LOG_FILE names a file to append to.
func InitGlobalLogger() {
	config := DefaultLogConfig()
	config.Name = "paypal-gateway"

	logFileName := os.Getenv("LOG_FILE")
	if logFileName != "" {
		file, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			panic(fmt.Sprintf("failed to open log file %s: %v", logFileName, err))
		}
		config.Output = file
	}

	logger, err := NewZapLogger(config)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	SetGlobalLogger(logger)

	logger.Info("Logger initialized",
		Field{"level", config.Level.String()},
		Field{"format", string(config.Format)},
		Field{"log_file", logFileName},
	)
}

// MustSync flushes any buffered log entries. Call before process exit.
func MustSync() {
	if zapLogger, ok := GetGlobalLogger().(*ZapAdapter); ok {
		_ = zapLogger.Sync()
	}
}

// WithContext adds context values to the global logger
func WithContext(ctx context.Context) Logger {
	return GetGlobalLogger().WithContext(ctx)
}

// WithFields adds fields to the global logger
func WithFields(fields ...Field) Logger {
	return GetGlobalLogger().WithFields(fields...)
}

// Component returns the global logger tagged with a component name
func Component(name string) Logger {
	return GetGlobalLogger().WithFields(Field{"component", name})
}

// Err creates an error field with key "error"
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Strings creates a string slice field
func Strings(key string, values []string) Field {
	return Field{Key: key, Value: values}
}
