package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstgnz/idpay/provider"
)

type mockPinger struct {
	err error
}

func (m mockPinger) Ping(ctx context.Context) error {
	return m.err
}

func healthRegistry() *provider.ProviderRegistry {
	registry := provider.NewProviderRegistry()
	registry.Register("idpay", func(host *provider.Host) provider.PaymentProvider { return nil })
	return registry
}

func TestNewHealthHandler(t *testing.T) {
	handler := NewHealthHandler(nil, nil, nil, nil)
	if handler == nil {
		t.Fatal("NewHealthHandler should not return nil")
	}

	if handler.startTime.IsZero() {
		t.Error("HealthHandler should have start time set")
	}
}

func TestHealthHandler_CheckHealth(t *testing.T) {
	tests := []struct {
		name           string
		handler        *HealthHandler
		expectedStatus int
	}{
		{
			name:           "no services",
			handler:        NewHealthHandler(nil, nil, nil, nil),
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name:           "storage down",
			handler:        NewHealthHandler(mockPinger{err: errors.New("database is locked")}, mockPinger{}, nil, healthRegistry()),
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name:           "no providers",
			handler:        NewHealthHandler(mockPinger{}, mockPinger{}, nil, provider.NewProviderRegistry()),
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name:           "opensearch down is not fatal",
			handler:        NewHealthHandler(mockPinger{}, mockPinger{}, mockPinger{err: errors.New("connection refused")}, healthRegistry()),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "all services up",
			handler:        NewHealthHandler(mockPinger{}, mockPinger{}, mockPinger{}, healthRegistry()),
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/health", nil)
			w := httptest.NewRecorder()

			tt.handler.CheckHealth(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			contentType := w.Header().Get("Content-Type")
			if contentType != "application/json" {
				t.Errorf("Expected content type application/json, got %s", contentType)
			}
		})
	}
}

func TestHealthHandler_Services(t *testing.T) {
	handler := NewHealthHandler(mockPinger{}, mockPinger{err: errors.New("redis: connection refused")}, nil, healthRegistry())

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	handler.CheckHealth(w, req)

	var body struct {
		Success bool         `json:"success"`
		Data    HealthStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.False(t, body.Success)
	assert.Equal(t, "unhealthy", body.Data.Status)
	assert.Equal(t, []string{"idpay"}, body.Data.Providers)
	assert.Equal(t, "healthy", body.Data.Services["storage"].Status)
	assert.Equal(t, "unhealthy", body.Data.Services["session_backend"].Status)
	assert.Equal(t, "redis: connection refused", body.Data.Services["session_backend"].Error)
	assert.Equal(t, "not_configured", body.Data.Services["opensearch"].Status)
}

func TestHealthHandler_DetermineOverallStatus(t *testing.T) {
	handler := NewHealthHandler(nil, nil, nil, nil)

	tests := []struct {
		name   string
		health *HealthStatus
		want   string
	}{
		{
			name: "healthy",
			health: &HealthStatus{
				Providers: []string{"idpay"},
				Services:  map[string]*ServiceHealth{"storage": {Status: "healthy", Healthy: true, Critical: true}},
			},
			want: "healthy",
		},
		{
			name: "slow storage",
			health: &HealthStatus{
				Providers: []string{"idpay"},
				Services:  map[string]*ServiceHealth{"storage": {Status: "degraded", Healthy: true, Critical: true}},
			},
			want: "degraded",
		},
		{
			name: "high memory",
			health: &HealthStatus{
				Providers: []string{"idpay"},
				Services:  map[string]*ServiceHealth{},
				System:    &SystemHealth{Memory: &MemoryHealth{UsagePercent: 95}},
			},
			want: "degraded",
		},
		{
			name: "critical service down",
			health: &HealthStatus{
				Providers: []string{"idpay"},
				Services:  map[string]*ServiceHealth{"session_backend": {Status: "unhealthy", Critical: true}},
			},
			want: "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := handler.determineOverallStatus(tt.health); got != tt.want {
				t.Errorf("determineOverallStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestHealthHandler_CheckService_Slow(t *testing.T) {
	handler := NewHealthHandler(nil, nil, nil, nil)

	slow := pingerFunc(func(ctx context.Context) error {
		time.Sleep(1100 * time.Millisecond)
		return nil
	})

	service := handler.checkService(context.Background(), slow, true, "slow")
	assert.Equal(t, "degraded", service.Status)
	assert.True(t, service.Healthy)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestGetEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("ENV", "")
	assert.Equal(t, "development", getEnvironment())

	t.Setenv("ENV", "staging")
	assert.Equal(t, "staging", getEnvironment())

	t.Setenv("ENVIRONMENT", "production")
	assert.Equal(t, "production", getEnvironment())
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    uint64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatBytes(tt.bytes)
			if result != tt.expected {
				t.Errorf("formatBytes(%d) = %s, expected %s", tt.bytes, result, tt.expected)
			}
		})
	}
}
