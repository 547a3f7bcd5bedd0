package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/idpay/infra/opensearch"
	"github.com/mstgnz/idpay/infra/response"
	"github.com/mstgnz/idpay/provider"
)

// LogStore reads stored payment logs
type LogStore interface {
	ListPaymentLogs(ctx context.Context, requestKey string, limit int) ([]provider.PaymentLog, error)
}

// LogSearcher queries the payment logs shipped to OpenSearch
type LogSearcher interface {
	GetTransactionLogs(ctx context.Context, transactionID string) ([]opensearch.PaymentLog, error)
	GetRecentErrorLogs(ctx context.Context, hours int) ([]opensearch.PaymentLog, error)
}

// LogsHandler handles logs related HTTP requests
type LogsHandler struct {
	store  LogStore
	search LogSearcher
}

// NewLogsHandler creates a new logs handler. search may be nil when OpenSearch
// logging is disabled.
func NewLogsHandler(store LogStore, search LogSearcher) *LogsHandler {
	return &LogsHandler{
		store:  store,
		search: search,
	}
}

// GetPurchaseLogs lists the callbacks logged for a purchase request, newest first
func (h *LogsHandler) GetPurchaseLogs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	requestKey := chi.URLParam(r, "requestKey")

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 || parsed > 500 {
			response.Error(w, http.StatusBadRequest, "Invalid limit parameter (must be 1-500)", err)
			return
		}
		limit = parsed
	}

	logs, err := h.store.ListPaymentLogs(ctx, requestKey, limit)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to retrieve payment logs", err)
		return
	}

	response.Success(w, http.StatusOK, "Payment logs retrieved", map[string]any{
		"requestKey": requestKey,
		"logs":       logs,
		"count":      len(logs),
	})
}

// GetTransactionLogs searches the shipped logs of a gateway transaction
func (h *LogsHandler) GetTransactionLogs(w http.ResponseWriter, r *http.Request) {
	if h.search == nil {
		response.Error(w, http.StatusServiceUnavailable, "OpenSearch logging is disabled", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	transactionID := chi.URLParam(r, "transactionID")

	logs, err := h.search.GetTransactionLogs(ctx, transactionID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to search transaction logs", err)
		return
	}

	response.Success(w, http.StatusOK, "Transaction logs retrieved", map[string]any{
		"transactionId": transactionID,
		"logs":          logs,
		"count":         len(logs),
	})
}

// GetErrorLogs returns the error callbacks of the last hours (default 24, max 168)
func (h *LogsHandler) GetErrorLogs(w http.ResponseWriter, r *http.Request) {
	if h.search == nil {
		response.Error(w, http.StatusServiceUnavailable, "OpenSearch logging is disabled", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	hours := 24
	if hoursStr := r.URL.Query().Get("hours"); hoursStr != "" {
		parsed, err := strconv.Atoi(hoursStr)
		if err != nil || parsed <= 0 || parsed > 168 {
			response.Error(w, http.StatusBadRequest, "Invalid hours parameter (must be 1-168)", err)
			return
		}
		hours = parsed
	}

	logs, err := h.search.GetRecentErrorLogs(ctx, hours)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to retrieve error logs", err)
		return
	}

	response.Success(w, http.StatusOK, "Error logs retrieved", map[string]any{
		"hours": hours,
		"logs":  logs,
		"count": len(logs),
	})
}
