package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log entry
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
	LevelFatal LogLevel = "fatal"
)

var levelOrder = map[LogLevel]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
	LevelFatal: 4,
}

// ParseLevel maps a configured level name to a LogLevel, defaulting to info
func ParseLevel(level string) LogLevel {
	l := LogLevel(strings.ToLower(strings.TrimSpace(level)))
	if _, ok := levelOrder[l]; ok {
		return l
	}
	return LevelInfo
}

// SystemLog represents a structured system log entry
type SystemLog struct {
	Timestamp   time.Time      `json:"timestamp"`
	Level       LogLevel       `json:"level"`
	Message     string         `json:"message"`
	Component   string         `json:"component"`
	Function    string         `json:"function"`
	File        string         `json:"file"`
	Line        int            `json:"line"`
	Provider    string         `json:"provider,omitempty"`
	RequestID   string         `json:"request_id,omitempty"`
	Error       string         `json:"error,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
	Environment string         `json:"environment"`
	Service     string         `json:"service"`
	Version     string         `json:"version"`
}

// EventSink receives a copy of every system log entry, e.g. an OpenSearch index
type EventSink interface {
	LogSystemEvent(ctx context.Context, entry any) error
}

// SystemLogger handles structured logging to the console and an optional sink
type SystemLogger struct {
	sink          EventSink
	enableConsole bool
	enableSink    bool
	minLevel      LogLevel
	service       string
	version       string
	environment   string

	out   io.Writer
	outMu sync.Mutex
}

// SystemLoggerConfig represents configuration for system logger
type SystemLoggerConfig struct {
	EnableConsole    bool
	EnableOpenSearch bool
	MinLevel         LogLevel
	Service          string
	Version          string
	Environment      string
	// Output defaults to os.Stdout
	Output io.Writer
}

// NewSystemLogger creates a new system logger
func NewSystemLogger(sink EventSink, config SystemLoggerConfig) *SystemLogger {
	out := config.Output
	if out == nil {
		out = os.Stdout
	}
	minLevel := config.MinLevel
	if minLevel == "" {
		minLevel = LevelInfo
	}

	return &SystemLogger{
		sink:          sink,
		enableConsole: config.EnableConsole,
		enableSink:    config.EnableOpenSearch && sink != nil,
		minLevel:      minLevel,
		service:       config.Service,
		version:       config.Version,
		environment:   config.Environment,
		out:           out,
	}
}

// LogContext holds contextual information for logging
type LogContext struct {
	Provider  string
	RequestID string
	Fields    map[string]any
}

// Debug logs a debug message
func (sl *SystemLogger) Debug(message string, ctx ...LogContext) {
	sl.log(LevelDebug, message, ctx...)
}

// Info logs an info message
func (sl *SystemLogger) Info(message string, ctx ...LogContext) {
	sl.log(LevelInfo, message, ctx...)
}

// Warn logs a warning message
func (sl *SystemLogger) Warn(message string, ctx ...LogContext) {
	sl.log(LevelWarn, message, ctx...)
}

// Error logs an error message
func (sl *SystemLogger) Error(message string, err error, ctx ...LogContext) {
	sl.log(LevelError, message, withError(err, ctx)...)
}

// Fatal logs a fatal message and exits
func (sl *SystemLogger) Fatal(message string, err error, ctx ...LogContext) {
	sl.log(LevelFatal, message, withError(err, ctx)...)
	os.Exit(1)
}

// withError copies the context and adds err to its fields
func withError(err error, ctx []LogContext) []LogContext {
	logCtx := LogContext{}
	if len(ctx) > 0 {
		logCtx = ctx[0]
	}

	fields := make(map[string]any, len(logCtx.Fields)+1)
	for k, v := range logCtx.Fields {
		fields[k] = v
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	logCtx.Fields = fields

	return []LogContext{logCtx}
}

// log is the core logging function
func (sl *SystemLogger) log(level LogLevel, message string, ctx ...LogContext) {
	if !sl.shouldLog(level) {
		return
	}

	file, line, function := "unknown", 0, "unknown"
	if pc, f, l, ok := runtime.Caller(3); ok {
		file, line = f, l
		if fn := runtime.FuncForPC(pc); fn != nil {
			function = fn.Name()
			if idx := strings.LastIndex(function, "."); idx != -1 {
				function = function[idx+1:]
			}
		}
	}

	logEntry := SystemLog{
		Timestamp:   time.Now().UTC(),
		Level:       level,
		Message:     message,
		Component:   extractComponent(file),
		Function:    function,
		File:        file,
		Line:        line,
		Environment: sl.environment,
		Service:     sl.service,
		Version:     sl.version,
	}

	if len(ctx) > 0 {
		logCtx := ctx[0]
		logEntry.Provider = logCtx.Provider
		logEntry.RequestID = logCtx.RequestID
		logEntry.Fields = logCtx.Fields

		if errMsg, ok := logCtx.Fields["error"].(string); ok {
			logEntry.Error = errMsg
		}
	}

	if sl.enableConsole {
		sl.logToConsole(logEntry)
	}

	if sl.enableSink {
		go sl.logToSink(logEntry)
	}
}

// shouldLog checks if the log level should be logged
func (sl *SystemLogger) shouldLog(level LogLevel) bool {
	return levelOrder[level] >= levelOrder[sl.minLevel]
}

// extractComponent extracts component name from file path
// e.g., /path/to/idpay/provider/idpay/idpay.go -> provider/idpay
func extractComponent(file string) string {
	parts := strings.Split(file, "/")

	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] == "idpay" && i+2 < len(parts) {
			if i+3 < len(parts) {
				return parts[i+1] + "/" + parts[i+2]
			}
			return parts[i+1]
		}
	}

	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}

	return "unknown"
}

var levelColors = map[LogLevel]string{
	LevelDebug: "\033[36m", // Cyan
	LevelInfo:  "\033[32m", // Green
	LevelWarn:  "\033[33m", // Yellow
	LevelError: "\033[31m", // Red
	LevelFatal: "\033[35m", // Magenta
}

const colorReset = "\033[0m"

// logToConsole logs to console with colored output
func (sl *SystemLogger) logToConsole(entry SystemLog) {
	timestamp := entry.Timestamp.Format("2006-01-02 15:04:05")

	var contextParts []string
	if entry.Provider != "" {
		contextParts = append(contextParts, "provider="+entry.Provider)
	}
	if entry.RequestID != "" {
		requestID := entry.RequestID
		if len(requestID) > 8 {
			requestID = requestID[:8]
		}
		contextParts = append(contextParts, "req_id="+requestID)
	}

	contextStr := ""
	if len(contextParts) > 0 {
		contextStr = fmt.Sprintf("[%s] ", strings.Join(contextParts, " "))
	}

	errStr := ""
	if entry.Error != "" {
		errStr = " - Error: " + entry.Error
	}

	var b strings.Builder
	// Log format: [TIMESTAMP] [LEVEL] [COMPONENT] [CONTEXT] MESSAGE
	fmt.Fprintf(&b, "%s [%s] [%s] %s%s%s\n",
		timestamp,
		levelColors[entry.Level]+strings.ToUpper(string(entry.Level))+colorReset,
		entry.Component,
		contextStr,
		entry.Message,
		errStr,
	)

	keys := make([]string, 0, len(entry.Fields))
	for key := range entry.Fields {
		if key != "error" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, "  %s: %v\n", key, entry.Fields[key])
	}

	sl.outMu.Lock()
	defer sl.outMu.Unlock()
	io.WriteString(sl.out, b.String())
}

// logToSink ships the entry to the sink asynchronously
func (sl *SystemLogger) logToSink(entry SystemLog) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sl.sink.LogSystemEvent(ctx, entry); err != nil {
		log.Printf("Failed to log to OpenSearch: %v", err)
	}
}

// WithContext creates a new logger with context
func (sl *SystemLogger) WithContext(ctx LogContext) *ContextLogger {
	return &ContextLogger{
		systemLogger: sl,
		context:      ctx,
	}
}

// ContextLogger wraps SystemLogger with context
type ContextLogger struct {
	systemLogger *SystemLogger
	context      LogContext
}

// Debug logs a debug message with context
func (cl *ContextLogger) Debug(message string) {
	cl.systemLogger.Debug(message, cl.context)
}

// Info logs an info message with context
func (cl *ContextLogger) Info(message string) {
	cl.systemLogger.Info(message, cl.context)
}

// Warn logs a warning message with context
func (cl *ContextLogger) Warn(message string) {
	cl.systemLogger.Warn(message, cl.context)
}

// Error logs an error message with context
func (cl *ContextLogger) Error(message string, err error) {
	cl.systemLogger.Error(message, err, cl.context)
}

// AddField adds a field to the context
func (cl *ContextLogger) AddField(key string, value any) *ContextLogger {
	if cl.context.Fields == nil {
		cl.context.Fields = make(map[string]any)
	}
	cl.context.Fields[key] = value
	return cl
}

// SetProvider sets the provider in context
func (cl *ContextLogger) SetProvider(provider string) *ContextLogger {
	cl.context.Provider = provider
	return cl
}

// SetRequestID sets the request ID in context
func (cl *ContextLogger) SetRequestID(requestID string) *ContextLogger {
	cl.context.RequestID = requestID
	return cl
}
