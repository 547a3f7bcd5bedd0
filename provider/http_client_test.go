package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderHTTPClient_SendJSON(t *testing.T) {
	var gotHeaders http.Header
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		assert.Equal(t, "/v1/payment", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"gw-1"}`))
	}))
	defer server.Close()

	client := NewProviderHTTPClient(CreateHTTPClientConfig(server.URL+"/", 0))
	resp, err := client.SendJSON(context.Background(), &HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: "/v1/payment",
		Headers:  map[string]string{"X-API-KEY": "key"},
		Body:     map[string]any{"amount": 10000},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var parsed struct {
		ID string `json:"id"`
	}
	require.NoError(t, client.ParseJSONResponse(resp, &parsed))
	assert.Equal(t, "gw-1", parsed.ID)

	assert.Equal(t, "key", gotHeaders.Get("X-API-KEY"))
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "application/json", gotHeaders.Get("Accept"))
	assert.Equal(t, float64(10000), gotBody["amount"])
}

func TestProviderHTTPClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error_code":11}`))
	}))
	defer server.Close()

	client := NewProviderHTTPClient(CreateHTTPClientConfig(server.URL, time.Second))
	resp, err := client.SendJSON(context.Background(), &HTTPRequest{Method: http.MethodPost, Endpoint: "/v1/payment/inquiry"})

	require.Error(t, err)
	require.NotNil(t, resp, "the response is kept so callers can report the status")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, err.Error(), "HTTP error 403")
}

func TestProviderHTTPClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client := NewProviderHTTPClient(CreateHTTPClientConfig(server.URL, time.Second))
	resp, err := client.SendJSON(context.Background(), &HTTPRequest{Method: http.MethodPost, Endpoint: "/v1/payment"})

	assert.Error(t, err)
	assert.Nil(t, resp)
}

func TestCreateHTTPClientConfig_DefaultTimeout(t *testing.T) {
	cfg := CreateHTTPClientConfig("https://api.idpay.ir", 0)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "IDPay-Go/1.0", cfg.DefaultHeaders["User-Agent"])
}
