package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []SystemLog
	done    chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{done: make(chan struct{}, 10)}
}

func (s *recordingSink) LogSystemEvent(ctx context.Context, entry any) error {
	s.mu.Lock()
	s.entries = append(s.entries, entry.(SystemLog))
	s.mu.Unlock()
	s.done <- struct{}{}
	return nil
}

func newTestLogger(minLevel LogLevel) (*SystemLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := NewSystemLogger(nil, SystemLoggerConfig{
		EnableConsole: true,
		MinLevel:      minLevel,
		Service:       "test-service",
		Version:       "1.0.0",
		Environment:   "test",
		Output:        &buf,
	})
	return logger, &buf
}

func TestNewSystemLogger(t *testing.T) {
	config := SystemLoggerConfig{
		EnableConsole:    true,
		EnableOpenSearch: true,
		MinLevel:         LevelInfo,
		Service:          "test-service",
		Version:          "1.0.0",
		Environment:      "test",
	}

	logger := NewSystemLogger(nil, config)

	assert.NotNil(t, logger)
	assert.True(t, logger.enableConsole)
	assert.False(t, logger.enableSink, "sink stays off without a sink")
	assert.Equal(t, LevelInfo, logger.minLevel)
	assert.Equal(t, "test-service", logger.service)
	assert.Equal(t, "1.0.0", logger.version)
	assert.Equal(t, "test", logger.environment)
}

func TestSystemLogger_MinLevel(t *testing.T) {
	logger, buf := newTestLogger(LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message", errors.New("boom"))

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message - Error: boom")
}

func TestSystemLogger_ConsoleFormat(t *testing.T) {
	logger, buf := newTestLogger(LevelDebug)

	logger.Info("Callback processed", LogContext{
		Provider:  "idpay",
		RequestID: "0123456789abcdef",
		Fields:    map[string]any{"transaction_id": "gw-1", "request_key": "req-1"},
	})

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "[provider=idpay req_id=01234567] Callback processed")
	assert.Contains(t, out, "  request_key: req-1\n  transaction_id: gw-1\n")
}

func TestSystemLogger_ShortRequestID(t *testing.T) {
	logger, buf := newTestLogger(LevelDebug)

	assert.NotPanics(t, func() {
		logger.Info("short", LogContext{RequestID: "abc"})
	})
	assert.Contains(t, buf.String(), "req_id=abc")
}

func TestSystemLogger_ErrorDoesNotMutateContext(t *testing.T) {
	logger, _ := newTestLogger(LevelDebug)

	fields := map[string]any{"key": "value"}
	logger.Error("failed", errors.New("boom"), LogContext{Fields: fields})

	_, hasError := fields["error"]
	assert.False(t, hasError)
}

func TestSystemLogger_Sink(t *testing.T) {
	sink := newRecordingSink()
	logger := NewSystemLogger(sink, SystemLoggerConfig{
		EnableOpenSearch: true,
		MinLevel:         LevelInfo,
		Service:          "idpay",
		Environment:      "test",
	})

	logger.Error("inquiry failed", errors.New("timeout"), LogContext{Provider: "idpay"})

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("sink did not receive the entry")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.entries, 1)
	assert.Equal(t, LevelError, sink.entries[0].Level)
	assert.Equal(t, "timeout", sink.entries[0].Error)
	assert.Equal(t, "idpay", sink.entries[0].Provider)
	assert.Equal(t, "idpay", sink.entries[0].Service)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{" warn ", LevelWarn},
		{"error", LevelError},
		{"verbose", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestExtractComponent(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"/home/dev/idpay/provider/idpay/idpay.go", "provider/idpay"},
		{"/home/dev/idpay/infra/session/memory.go", "infra/session"},
		{"/home/dev/idpay/cmd/main.go", "cmd"},
		{"/tmp/other/file.go", "other"},
		{"file.go", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			assert.Equal(t, tt.want, extractComponent(tt.file))
		})
	}
}

func TestContextLogger(t *testing.T) {
	logger, buf := newTestLogger(LevelDebug)

	cl := logger.WithContext(LogContext{}).
		SetProvider("idpay").
		SetRequestID("req-12345678").
		AddField("amount", 10000)

	cl.Warn("Amount mismatch")

	out := buf.String()
	assert.Contains(t, out, "provider=idpay")
	assert.Contains(t, out, "Amount mismatch")
	assert.True(t, strings.Contains(out, "amount: 10000"))
}
