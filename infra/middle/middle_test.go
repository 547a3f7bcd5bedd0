package middle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2)
	rl.window = time.Second

	clientIP := "192.168.1.1"

	if !rl.Allow(clientIP) {
		t.Error("First request should be allowed")
	}
	if !rl.Allow(clientIP) {
		t.Error("Second request should be allowed")
	}
	if rl.Allow(clientIP) {
		t.Error("Third request should be denied")
	}
	if !rl.Allow("192.168.1.2") {
		t.Error("Other clients have their own budget")
	}

	// move the window start into the past instead of sleeping
	rl.mu.Lock()
	rl.visitors[clientIP].lastReset = time.Now().Add(-2 * time.Second)
	rl.mu.Unlock()

	if !rl.Allow(clientIP) {
		t.Error("Request should be allowed after window reset")
	}
}

func TestNewRateLimiter_Default(t *testing.T) {
	rl := NewRateLimiter(0)
	if rl.rate != 100 {
		t.Errorf("Expected default rate 100, got %d", rl.rate)
	}
	if rl.window != time.Minute {
		t.Errorf("Expected window of one minute, got %v", rl.window)
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(5)
	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.2")

	rl.mu.Lock()
	rl.visitors["10.0.0.1"].lastReset = time.Now().Add(-3 * time.Minute)
	rl.mu.Unlock()

	rl.cleanup(time.Now())

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.visitors["10.0.0.1"]; ok {
		t.Error("Idle visitor should be removed")
	}
	if _, ok := rl.visitors["10.0.0.2"]; !ok {
		t.Error("Active visitor should be kept")
	}
}

func TestRateLimiter_StartCleanupStops(t *testing.T) {
	rl := NewRateLimiter(5)
	rl.window = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	rl.StartCleanup(ctx)
	cancel()
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1)
	handler := RateLimitMiddleware(rl)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.1.1.1:5000"

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", rr.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expected   string
	}{
		{
			name:       "X-Forwarded-For single IP",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1"},
			remoteAddr: "10.0.0.1:1234",
			expected:   "203.0.113.1",
		},
		{
			name:       "X-Forwarded-For multiple IPs",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.2"},
			remoteAddr: "10.0.0.1:1234",
			expected:   "203.0.113.1",
		},
		{
			name:       "X-Real-IP",
			headers:    map[string]string{"X-Real-IP": " 203.0.113.5 "},
			remoteAddr: "10.0.0.1:1234",
			expected:   "203.0.113.5",
		},
		{
			name:       "RemoteAddr with port",
			remoteAddr: "192.168.1.10:8080",
			expected:   "192.168.1.10",
		},
		{
			name:       "IPv6 RemoteAddr",
			remoteAddr: "[2001:db8::1]:443",
			expected:   "2001:db8::1",
		},
		{
			name:       "IPv6 localhost",
			remoteAddr: "[::1]:443",
			expected:   "127.0.0.1",
		},
		{
			name:       "RemoteAddr without port",
			remoteAddr: "192.168.1.10",
			expected:   "192.168.1.10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			if got := GetClientIP(req); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	handler := SecurityHeadersMiddleware()(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	expected := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for header, value := range expected {
		if got := rr.Header().Get(header); got != value {
			t.Errorf("Expected %s=%s, got %s", header, value, got)
		}
	}

	if !strings.Contains(rr.Header().Get("Content-Security-Policy"), "'unsafe-inline'") {
		t.Error("Inline redirect scripts must stay allowed")
	}
}

func TestIPWhitelistMiddleware(t *testing.T) {
	handler := IPWhitelistMiddleware()(okHandler())

	tests := []struct {
		name       string
		whitelist  string
		remoteAddr string
		expected   int
	}{
		{"No whitelist", "", "10.0.0.1:1", http.StatusOK},
		{"Whitelisted", "10.0.0.1, 10.0.0.2", "10.0.0.2:1", http.StatusOK},
		{"Not whitelisted", "10.0.0.1", "10.0.0.9:1", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ADMIN_IP_WHITELIST", tt.whitelist)

			req := httptest.NewRequest(http.MethodGet, "/v1/profiles", nil)
			req.RemoteAddr = tt.remoteAddr
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expected {
				t.Errorf("Expected status %d, got %d", tt.expected, rr.Code)
			}
		})
	}
}

func TestRequestValidationMiddleware(t *testing.T) {
	handler := RequestValidationMiddleware()(okHandler())

	tests := []struct {
		name          string
		method        string
		path          string
		contentType   string
		contentLength int64
		expected      int
	}{
		{"GET without body", http.MethodGet, "/v1/profiles", "", 0, http.StatusOK},
		{"JSON API request", http.MethodPost, "/v1/purchases", "application/json", 0, http.StatusOK},
		{"API request without content type", http.MethodPost, "/v1/purchases", "", 0, http.StatusBadRequest},
		{"API request with form", http.MethodPost, "/v1/purchases", "application/x-www-form-urlencoded", 0, http.StatusUnsupportedMediaType},
		{"Form callback", http.MethodPost, "/v1/callback/idpay", "application/x-www-form-urlencoded", 0, http.StatusOK},
		{"JSON callback", http.MethodPost, "/v1/callback/idpay", "application/json; charset=utf-8", 0, http.StatusOK},
		{"Callback without content type", http.MethodPost, "/v1/callback/idpay", "", 0, http.StatusOK},
		{"Callback with xml", http.MethodPost, "/v1/callback/idpay", "text/xml", 0, http.StatusUnsupportedMediaType},
		{"Checkout form post", http.MethodPost, "/v1/purchases/abc/pay", "application/x-www-form-urlencoded", 0, http.StatusOK},
		{"Oversized body", http.MethodPost, "/v1/purchases", "application/json", 2 << 20, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			req.ContentLength = tt.contentLength

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expected {
				t.Errorf("Expected status %d, got %d", tt.expected, rr.Code)
			}
		})
	}
}
