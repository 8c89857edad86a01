// This file extends the base logger with context-aware logging helpers and
// structured field builders used across the engine's packages.
package common

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel represents standard logging levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

// LoggerConfig contains configuration for creating a logger
type LoggerConfig struct {
	Level      LogLevel
	Format     string // "json" or "text"
	Service    string
	Version    string
	AddCaller  bool
	TimeFormat string
}

// DefaultLoggerConfig returns a logger config with sensible defaults
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:      LogLevelInfo,
		Format:     "text",
		TimeFormat: time.RFC3339,
	}
}

// NewLogger creates a new configured logger instance
func NewLogger(config LoggerConfig) *logrus.Logger {
	logger := logrus.New()

	switch config.Level {
	case LogLevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LogLevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case LogLevelError:
		logger.SetLevel(logrus.ErrorLevel)
	case LogLevelFatal:
		logger.SetLevel(logrus.FatalLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if config.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: config.TimeFormat,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: config.TimeFormat,
			FullTimestamp:   true,
		})
	}

	logger.SetReportCaller(config.AddCaller)
	logger.SetOutput(&OutputSplitter{})

	return logger
}

// ContextLogger provides context-aware logging utilities
type ContextLogger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

// NewContextLogger creates a new context-aware logger with base fields
func NewContextLogger(logger *logrus.Logger, fields map[string]interface{}) *ContextLogger {
	if logger == nil {
		logger = Logger
	}

	baseFields := make(logrus.Fields)
	for k, v := range fields {
		baseFields[k] = v
	}

	return &ContextLogger{logger: logger, fields: baseFields}
}

func (cl *ContextLogger) WithField(key string, value interface{}) *ContextLogger {
	newFields := make(logrus.Fields)
	for k, v := range cl.fields {
		newFields[k] = v
	}
	newFields[key] = value
	return &ContextLogger{logger: cl.logger, fields: newFields}
}

func (cl *ContextLogger) WithFields(fields map[string]interface{}) *ContextLogger {
	newFields := make(logrus.Fields)
	for k, v := range cl.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}
	return &ContextLogger{logger: cl.logger, fields: newFields}
}

func (cl *ContextLogger) WithError(err error) *ContextLogger {
	return cl.WithField("error", err.Error())
}

// WithContext extracts request/trace IDs from context
func (cl *ContextLogger) WithContext(ctx context.Context) *ContextLogger {
	newFields := make(logrus.Fields)
	for k, v := range cl.fields {
		newFields[k] = v
	}

	if requestID := ctx.Value("request_id"); requestID != nil {
		newFields["request_id"] = requestID
	}
	if traceID := ctx.Value("trace_id"); traceID != nil {
		newFields["trace_id"] = traceID
	}
	if userID := ctx.Value("user_id"); userID != nil {
		newFields["user_id"] = userID
	}

	return &ContextLogger{logger: cl.logger, fields: newFields}
}

func (cl *ContextLogger) Debug(msg string) { cl.logger.WithFields(cl.fields).Debug(msg) }
func (cl *ContextLogger) Debugf(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Debugf(format, args...)
}
func (cl *ContextLogger) Info(msg string) { cl.logger.WithFields(cl.fields).Info(msg) }
func (cl *ContextLogger) Infof(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Infof(format, args...)
}
func (cl *ContextLogger) Warn(msg string) { cl.logger.WithFields(cl.fields).Warn(msg) }
func (cl *ContextLogger) Warnf(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Warnf(format, args...)
}
func (cl *ContextLogger) Error(msg string) { cl.logger.WithFields(cl.fields).Error(msg) }
func (cl *ContextLogger) Errorf(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Errorf(format, args...)
}
func (cl *ContextLogger) Fatal(msg string) { cl.logger.WithFields(cl.fields).Fatal(msg) }
func (cl *ContextLogger) Fatalf(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Fatalf(format, args...)
}

// ServiceLogger creates a logger pre-configured with service metadata.
func ServiceLogger(serviceName, serviceVersion string) *ContextLogger {
	return NewContextLogger(Logger, map[string]interface{}{
		"service": serviceName,
		"version": serviceVersion,
	})
}

// RequestLogger creates a logger for HTTP request tracking
func RequestLogger(serviceName, method, path, requestID string) *ContextLogger {
	return NewContextLogger(Logger, map[string]interface{}{
		"service":    serviceName,
		"method":     method,
		"path":       path,
		"request_id": requestID,
	})
}

// LogOperation logs the start and end of an operation with timing
func LogOperation(logger *ContextLogger, operation string, fn func() error) error {
	start := time.Now()
	logger.WithField("operation", operation).Info("operation started")

	err := fn()

	duration := time.Since(start)
	logEntry := logger.WithFields(map[string]interface{}{
		"operation":   operation,
		"duration":    duration.String(),
		"duration_ms": duration.Milliseconds(),
	})

	if err != nil {
		logEntry.WithError(err).Error("operation failed")
		return err
	}

	logEntry.Info("operation completed")
	return nil
}

// LogDuration returns a func to defer that logs the elapsed time on return.
func LogDuration(logger *ContextLogger, operation string) func() {
	start := time.Now()
	return func() {
		duration := time.Since(start)
		logger.WithFields(map[string]interface{}{
			"operation":   operation,
			"duration":    duration.String(),
			"duration_ms": duration.Milliseconds(),
		}).Info("operation completed")
	}
}

// LogPanic recovers from a panic and logs it with a stack trace.
func LogPanic(logger *ContextLogger) {
	if r := recover(); r != nil {
		buf := make([]byte, 4096)
		n := runtime.Stack(buf, false)

		logger.WithFields(map[string]interface{}{
			"panic":      fmt.Sprintf("%v", r),
			"stacktrace": string(buf[:n]),
		}).Error("panic recovered")
	}
}

// HTTPFields returns standard fields for HTTP logging
func HTTPFields(method, path string, statusCode int, duration time.Duration) map[string]interface{} {
	return map[string]interface{}{
		"http_method":      method,
		"http_path":        path,
		"http_status_code": statusCode,
		"duration":         duration.String(),
		"duration_ms":      duration.Milliseconds(),
	}
}

// DatabaseFields returns standard fields for database operation logging
func DatabaseFields(operation, table string, rowsAffected int64, duration time.Duration) map[string]interface{} {
	return map[string]interface{}{
		"db_operation":  operation,
		"db_table":      table,
		"rows_affected": rowsAffected,
		"duration":      duration.String(),
		"duration_ms":   duration.Milliseconds(),
	}
}

// ErrorFields returns standard fields for error logging
func ErrorFields(err error, context string) map[string]interface{} {
	return map[string]interface{}{
		"error":      err.Error(),
		"context":    context,
		"error_type": fmt.Sprintf("%T", err),
	}
}
