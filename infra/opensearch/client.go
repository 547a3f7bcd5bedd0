package opensearch

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mstgnz/idpay/infra/config"
	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

const (
	PaymentLogIndex = "idpay-payment-logs"
	SystemLogIndex  = "idpay-system-logs"
)

// Client wraps the OpenSearch client
type Client struct {
	client  *opensearch.Client
	enabled bool
}

// NewClient creates a new OpenSearch client and makes sure the log indices exist
func NewClient(cfg *config.AppConfig) (*Client, error) {
	opensearchConfig := opensearch.Config{
		Addresses: []string{cfg.OpenSearchURL},
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.Environment != "production",
			},
		},
		MaxRetries:    3,
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			return time.Duration(i) * 100 * time.Millisecond
		},
	}

	if cfg.OpenSearchUser != "" && cfg.OpenSearchPass != "" {
		opensearchConfig.Username = cfg.OpenSearchUser
		opensearchConfig.Password = cfg.OpenSearchPass
	}

	client, err := opensearch.NewClient(opensearchConfig)
	if err != nil {
		return nil, err
	}

	osClient := &Client{
		client:  client,
		enabled: cfg.EnableLogging,
	}

	if osClient.enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := osClient.setupIndices(ctx); err != nil {
			log.Printf("Warning: Failed to setup OpenSearch indices: %v", err)
		}
	}

	return osClient, nil
}

// GetClient returns the underlying OpenSearch client
func (c *Client) GetClient() *opensearch.Client {
	return c.client
}

// IsEnabled returns whether OpenSearch logging is enabled
func (c *Client) IsEnabled() bool {
	return c.enabled
}

// Ping checks that the cluster answers
func (c *Client) Ping(ctx context.Context) error {
	res, err := opensearchapi.PingRequest{}.Do(ctx, c.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch ping error: %s", res.String())
	}
	return nil
}

// setupIndices creates the payment and system log indices when missing
func (c *Client) setupIndices(ctx context.Context) error {
	indices := map[string]string{
		PaymentLogIndex: paymentLogMapping,
		SystemLogIndex:  systemLogMapping,
	}

	var failed []string
	for indexName, mapping := range indices {
		exists, err := c.indexExists(ctx, indexName)
		if err != nil {
			failed = append(failed, indexName)
			continue
		}

		if !exists {
			if err := c.createIndex(ctx, indexName, mapping); err != nil {
				failed = append(failed, indexName)
				continue
			}
			log.Printf("Created OpenSearch index: %s", indexName)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("could not prepare indices: %s", strings.Join(failed, ", "))
	}
	return nil
}

// indexExists checks if an index exists
func (c *Client) indexExists(ctx context.Context, indexName string) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{
		Index: []string{indexName},
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	return res.StatusCode == http.StatusOK, nil
}

// createIndex creates an index with the given mapping
func (c *Client) createIndex(ctx context.Context, indexName, mapping string) error {
	req := opensearchapi.IndicesCreateRequest{
		Index: indexName,
		Body:  strings.NewReader(mapping),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index creation error: %s", res.String())
	}

	return nil
}

const paymentLogMapping = `{
	"mappings": {
		"properties": {
			"timestamp":           {"type": "date", "format": "strict_date_optional_time||epoch_millis"},
			"provider":            {"type": "keyword"},
			"transaction_id":      {"type": "keyword"},
			"gateway_id":          {"type": "keyword"},
			"request_key":         {"type": "keyword"},
			"purchase_request_id": {"type": "long"},
			"log_type":            {"type": "keyword"},
			"log_message":         {"type": "text"},
			"log_details":         {"type": "object", "enabled": false}
		}
	},
	"settings": {
		"number_of_shards": 1,
		"number_of_replicas": 0
	}
}`

const systemLogMapping = `{
	"mappings": {
		"properties": {
			"timestamp":   {"type": "date", "format": "strict_date_optional_time||epoch_millis"},
			"level":       {"type": "keyword"},
			"message":     {"type": "text"},
			"component":   {"type": "keyword"},
			"provider":    {"type": "keyword"},
			"request_id":  {"type": "keyword"},
			"error":       {"type": "text"},
			"environment": {"type": "keyword"},
			"service":     {"type": "keyword"}
		}
	},
	"settings": {
		"number_of_shards": 1,
		"number_of_replicas": 0
	}
}`
