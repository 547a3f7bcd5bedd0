package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mstgnz/idpay/provider"
)

// InsertPaymentLog stores a callback outcome and sets entry.ID
func (s *Store) InsertPaymentLog(ctx context.Context, entry *provider.PaymentLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	details := entry.LogDetails
	if details == nil {
		details = map[string]string{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal log details: %w", err)
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	return s.retryOperation(func() error {
		query := s.rebind(`
		INSERT INTO payment_logs
			(provider_id, transaction_id, gateway_id, request_key, purchase_request_id, log_type, log_message, log_details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
		`)
		err := s.db.QueryRowContext(ctx, query,
			entry.ProviderID, entry.TransactionID, entry.GatewayID, entry.RequestKey, entry.PurchaseRequestID,
			string(entry.LogType), entry.LogMessage, string(detailsJSON), entry.CreatedAt,
		).Scan(&entry.ID)
		if err != nil {
			return fmt.Errorf("failed to insert payment log: %w", err)
		}
		return nil
	}, 3)
}

// CountLogsByTransactionID counts logs whose transaction id or original gateway id
// equals transactionID. With types given only those log types are counted.
func (s *Store) CountLogsByTransactionID(ctx context.Context, transactionID string, types ...provider.LogType) (int, error) {
	query := `SELECT COUNT(*) FROM payment_logs WHERE (transaction_id = ? OR gateway_id = ?)`
	args := []any{transactionID, transactionID}

	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		query += " AND log_type IN (" + strings.Join(placeholders, ", ") + ")"
	}

	var count int
	if err := s.db.QueryRowContext(ctx, s.rebind(query), args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count payment logs: %w", err)
	}
	return count, nil
}

// ListPaymentLogs returns the most recent logs of a purchase request, newest first
func (s *Store) ListPaymentLogs(ctx context.Context, requestKey string, limit int) ([]provider.PaymentLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := s.rebind(`
	SELECT id, provider_id, transaction_id, gateway_id, request_key, purchase_request_id,
		log_type, log_message, log_details, created_at
	FROM payment_logs
	WHERE request_key = ?
	ORDER BY id DESC
	LIMIT ?
	`)

	rows, err := s.db.QueryContext(ctx, query, requestKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment logs: %w", err)
	}
	defer rows.Close()

	logs := []provider.PaymentLog{}
	for rows.Next() {
		var (
			entry       provider.PaymentLog
			logType     string
			detailsJSON string
		)
		if err := rows.Scan(&entry.ID, &entry.ProviderID, &entry.TransactionID, &entry.GatewayID,
			&entry.RequestKey, &entry.PurchaseRequestID, &logType, &entry.LogMessage, &detailsJSON,
			&entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment log: %w", err)
		}
		entry.LogType = provider.LogType(logType)
		if detailsJSON != "" {
			if err := json.Unmarshal([]byte(detailsJSON), &entry.LogDetails); err != nil {
				return nil, fmt.Errorf("failed to unmarshal log details: %w", err)
			}
		}
		logs = append(logs, entry)
	}

	return logs, rows.Err()
}
