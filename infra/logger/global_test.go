package logger

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func resetGlobalLogger() {
	SetGlobalLogger(nil)
	once = sync.Once{}
}

func TestInitGlobalLogger(t *testing.T) {
	resetGlobalLogger()
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LOGGING_LEVEL", "warn")

	InitGlobalLogger(nil)

	logger := GetGlobalLogger()
	assert.Equal(t, "idpay", logger.service)
	assert.Equal(t, "production", logger.environment)
	assert.Equal(t, LevelWarn, logger.minLevel)
	assert.False(t, logger.enableSink)
}

func TestInitGlobalLogger_Development(t *testing.T) {
	resetGlobalLogger()
	t.Setenv("ENVIRONMENT", "development")

	InitGlobalLogger(nil)

	assert.Equal(t, LevelDebug, GetGlobalLogger().minLevel)
}

func TestInitGlobalLogger_OnlyOnce(t *testing.T) {
	resetGlobalLogger()

	InitGlobalLogger(nil)
	first := GetGlobalLogger()

	InitGlobalLogger(newRecordingSink())
	second := GetGlobalLogger()

	assert.Same(t, first, second)
}

func TestGetGlobalLogger_Fallback(t *testing.T) {
	resetGlobalLogger()

	logger := GetGlobalLogger()
	assert.NotNil(t, logger)
	assert.Equal(t, "idpay", logger.service)
	assert.Equal(t, LevelInfo, logger.minLevel)
}

func TestGlobalConvenienceFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetGlobalLogger(NewSystemLogger(nil, SystemLoggerConfig{
		EnableConsole: true,
		MinLevel:      LevelDebug,
		Output:        &buf,
	}))
	defer resetGlobalLogger()

	Debug("debug message")
	Info("info message", LogContext{Provider: "idpay"})
	Warn("warn message")
	Error("error message", nil)
	WithProvider("idpay").Info("provider message")
	WithRequest("req-1").Info("request message")

	out := buf.String()
	for _, msg := range []string{"debug message", "info message", "warn message", "error message", "provider message", "request message"} {
		assert.Contains(t, out, msg)
	}
}
