package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mstgnz/idpay/infra/logger"
)

// HTTPClientConfig represents configuration for HTTP client
type HTTPClientConfig struct {
	BaseURL        string
	Timeout        time.Duration
	DefaultHeaders map[string]string
	Transport      http.RoundTripper
}

// HTTPRequest represents a standardized HTTP request
type HTTPRequest struct {
	Method   string
	Endpoint string
	Headers  map[string]string
	Body     any
}

// HTTPResponse represents a standardized HTTP response
type HTTPResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// ProviderHTTPClient provides standardized HTTP operations for payment providers
type ProviderHTTPClient struct {
	config *HTTPClientConfig
	client *http.Client
}

// NewProviderHTTPClient creates a new provider HTTP client
func NewProviderHTTPClient(config *HTTPClientConfig) *ProviderHTTPClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	client := &http.Client{
		Timeout:   config.Timeout,
		Transport: config.Transport,
	}

	return &ProviderHTTPClient{
		config: config,
		client: client,
	}
}

// SendJSON sends a JSON request. On a non-2xx status the response is returned
// together with the error so callers can report the status code.
func (c *ProviderHTTPClient) SendJSON(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	fullURL := joinURL(c.config.BaseURL, req.Endpoint)

	var body io.Reader
	if req.Body != nil {
		jsonData, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON body: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	logger.Debug("Sending gateway request", logger.LogContext{
		Fields: map[string]any{"method": req.Method, "url": fullURL},
	})

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	response := &HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return response, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	return response, nil
}

// ParseJSONResponse parses the response body as JSON into the target interface
func (c *ProviderHTTPClient) ParseJSONResponse(response *HTTPResponse, target any) error {
	return json.Unmarshal(response.Body, target)
}

// CreateHTTPClientConfig creates a standard HTTP client configuration for providers
func CreateHTTPClientConfig(baseURL string, timeout time.Duration) *HTTPClientConfig {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &HTTPClientConfig{
		BaseURL: baseURL,
		Timeout: timeout,
		DefaultHeaders: map[string]string{
			"Accept":     "application/json",
			"User-Agent": "IDPay-Go/1.0",
		},
	}
}
