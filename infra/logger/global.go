package logger

import (
	"sync"

	"github.com/mstgnz/idpay/infra/config"
)

var (
	globalLogger *SystemLogger
	globalMu     sync.Mutex
	once         sync.Once
)

// InitGlobalLogger initializes the global system logger. A nil sink logs to the
// console only.
func InitGlobalLogger(sink EventSink) {
	once.Do(func() {
		cfg := SystemLoggerConfig{
			EnableConsole:    true,
			EnableOpenSearch: sink != nil,
			MinLevel:         ParseLevel(config.GetEnv("LOGGING_LEVEL", "info")),
			Service:          "idpay",
			Version:          "1.0.0",
			Environment:      config.GetEnv("ENVIRONMENT", "development"),
		}

		if cfg.Environment == "development" {
			cfg.MinLevel = LevelDebug
		}

		SetGlobalLogger(NewSystemLogger(sink, cfg))
	})
}

// SetGlobalLogger replaces the global logger
func SetGlobalLogger(l *SystemLogger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *SystemLogger {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLogger == nil {
		// Fallback to console-only logger if not initialized
		globalLogger = NewSystemLogger(nil, SystemLoggerConfig{
			EnableConsole: true,
			MinLevel:      LevelInfo,
			Service:       "idpay",
			Version:       "1.0.0",
			Environment:   "development",
		})
	}
	return globalLogger
}

// Convenience functions for global logging

// Debug logs a debug message using the global logger
func Debug(message string, ctx ...LogContext) {
	GetGlobalLogger().Debug(message, ctx...)
}

// Info logs an info message using the global logger
func Info(message string, ctx ...LogContext) {
	GetGlobalLogger().Info(message, ctx...)
}

// Warn logs a warning message using the global logger
func Warn(message string, ctx ...LogContext) {
	GetGlobalLogger().Warn(message, ctx...)
}

// Error logs an error message using the global logger
func Error(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Error(message, err, ctx...)
}

// Fatal logs a fatal message using the global logger and exits
func Fatal(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Fatal(message, err, ctx...)
}

// WithContext creates a context logger from the global logger
func WithContext(ctx LogContext) *ContextLogger {
	return GetGlobalLogger().WithContext(ctx)
}

// WithProvider creates a context logger with provider
func WithProvider(provider string) *ContextLogger {
	return WithContext(LogContext{Provider: provider})
}

// WithRequest creates a context logger with the request id
func WithRequest(requestID string) *ContextLogger {
	return WithContext(LogContext{RequestID: requestID})
}
