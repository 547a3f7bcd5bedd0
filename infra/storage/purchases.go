package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mstgnz/idpay/provider"
)

var ErrPurchaseRequestNotFound = errors.New("purchase request not found")

// CreatePurchaseRequest stores a new purchase request under a fresh request key
func (s *Store) CreatePurchaseRequest(ctx context.Context, request *provider.PurchaseRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if request.RequestKey == "" {
		request.RequestKey = uuid.New().String()
	}
	request.CreatedAt = time.Now().UTC()

	return s.retryOperation(func() error {
		query := s.rebind(`
		INSERT INTO purchase_requests
			(request_key, user_id, profile_id, purchasable, title, cost_amount, cost_currency, return_url, cancel_url, fulfilled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
		`)
		err := s.db.QueryRowContext(ctx, query,
			request.RequestKey, request.UserID, request.ProfileID, request.Purchasable, request.Title,
			request.CostAmount, request.CostCurrency, request.ReturnURL, request.CancelURL, request.Fulfilled,
			request.CreatedAt,
		).Scan(&request.ID)
		if err != nil {
			return fmt.Errorf("failed to insert purchase request: %w", err)
		}
		return nil
	}, 3)
}

// FindPurchaseRequest looks up a purchase request by key; a missing request is (nil, nil)
func (s *Store) FindPurchaseRequest(ctx context.Context, requestKey string) (*provider.PurchaseRequest, error) {
	query := s.rebind(`
	SELECT id, request_key, user_id, profile_id, purchasable, title, cost_amount, cost_currency,
		return_url, cancel_url, fulfilled, created_at
	FROM purchase_requests
	WHERE request_key = ?
	`)

	var request provider.PurchaseRequest
	err := s.db.QueryRowContext(ctx, query, requestKey).Scan(
		&request.ID, &request.RequestKey, &request.UserID, &request.ProfileID, &request.Purchasable,
		&request.Title, &request.CostAmount, &request.CostCurrency, &request.ReturnURL, &request.CancelURL,
		&request.Fulfilled, &request.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase request %s: %w", requestKey, err)
	}

	return &request, nil
}

// SetFulfilled flags a purchase request as delivered (or revoked)
func (s *Store) SetFulfilled(ctx context.Context, requestID int64, fulfilled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.retryOperation(func() error {
		query := s.rebind(`UPDATE purchase_requests SET fulfilled = ? WHERE id = ?`)
		res, err := s.db.ExecContext(ctx, query, fulfilled, requestID)
		if err != nil {
			return fmt.Errorf("failed to update purchase request: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrPurchaseRequestNotFound
		}
		return nil
	}, 3)
}

// MarkFulfilled flags a purchase request as delivered
func (s *Store) MarkFulfilled(ctx context.Context, requestID int64) error {
	return s.SetFulfilled(ctx, requestID, true)
}
