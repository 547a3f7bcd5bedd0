package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// PaymentLog is the indexed copy of a processed gateway callback
type PaymentLog struct {
	Timestamp         time.Time         `json:"timestamp"`
	Provider          string            `json:"provider"`
	TransactionID     string            `json:"transaction_id,omitempty"`
	GatewayID         string            `json:"gateway_id,omitempty"`
	RequestKey        string            `json:"request_key,omitempty"`
	PurchaseRequestID int64             `json:"purchase_request_id,omitempty"`
	LogType           string            `json:"log_type"`
	LogMessage        string            `json:"log_message"`
	LogDetails        map[string]string `json:"log_details,omitempty"`
}

// Logger handles OpenSearch logging operations
type Logger struct {
	client *Client
}

// NewLogger creates a new OpenSearch logger
func NewLogger(client *Client) *Logger {
	return &Logger{
		client: client,
	}
}

// LogPaymentEvent indexes a callback outcome
func (l *Logger) LogPaymentEvent(ctx context.Context, entry PaymentLog) error {
	if !l.client.IsEnabled() {
		return nil
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.LogDetails = SanitizeDetails(entry.LogDetails)

	return l.index(ctx, PaymentLogIndex, entry)
}

// LogSystemEvent indexes a system log entry
func (l *Logger) LogSystemEvent(ctx context.Context, entry any) error {
	if !l.client.IsEnabled() {
		return nil
	}

	return l.index(ctx, SystemLogIndex, entry)
}

func (l *Logger) index(ctx context.Context, indexName string, doc any) error {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal log: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index: indexName,
		Body:  bytes.NewReader(docJSON),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("failed to index log: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch error: %s", res.String())
	}

	return nil
}

// SearchPaymentLogs runs query against the payment log index, newest first
func (l *Logger) SearchPaymentLogs(ctx context.Context, query map[string]any) ([]PaymentLog, error) {
	if !l.client.IsEnabled() {
		return nil, fmt.Errorf("logging is disabled")
	}

	searchQuery := map[string]any{
		"query": query,
		"sort": []map[string]any{
			{"timestamp": map[string]string{"order": "desc"}},
		},
		"size": 100,
	}

	queryJSON, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{PaymentLogIndex},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("opensearch search error: %s", res.String())
	}

	var searchResult struct {
		Hits struct {
			Hits []struct {
				Source PaymentLog `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&searchResult); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}

	logs := make([]PaymentLog, len(searchResult.Hits.Hits))
	for i, hit := range searchResult.Hits.Hits {
		logs[i] = hit.Source
	}

	return logs, nil
}

// GetTransactionLogs returns the logs recorded for a gateway transaction
func (l *Logger) GetTransactionLogs(ctx context.Context, transactionID string) ([]PaymentLog, error) {
	query := map[string]any{
		"bool": map[string]any{
			"should": []map[string]any{
				{"term": map[string]any{"transaction_id": transactionID}},
				{"term": map[string]any{"gateway_id": transactionID}},
			},
			"minimum_should_match": 1,
		},
	}

	return l.SearchPaymentLogs(ctx, query)
}

// GetRecentErrorLogs returns error logs of the last hours
func (l *Logger) GetRecentErrorLogs(ctx context.Context, hours int) ([]PaymentLog, error) {
	query := map[string]any{
		"bool": map[string]any{
			"must": []map[string]any{
				{"range": map[string]any{"timestamp": map[string]any{"gte": fmt.Sprintf("now-%dh", hours)}}},
				{"term": map[string]any{"log_type": "error"}},
			},
		},
	}

	return l.SearchPaymentLogs(ctx, query)
}

var sensitiveKeys = []string{"api_key", "apikey", "x-api-key", "card_no", "hashed_card_no", "password", "token", "secret"}

// SanitizeDetails returns a copy of details with credential-like values redacted
func SanitizeDetails(details map[string]string) map[string]string {
	if details == nil {
		return nil
	}

	sanitized := make(map[string]string, len(details))
	for key, value := range details {
		if isSensitive(key) {
			sanitized[key] = "***REDACTED***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

func isSensitive(key string) bool {
	key = strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(key, sensitive) {
			return true
		}
	}
	return false
}
