package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/mstgnz/idpay/provider"
)

const (
	msgPaymentReceived   = "Payment received, purchase completed."
	msgPaymentReinstated = "Reversal cancelled, purchase reactivated."
	msgPaymentReversed   = "Payment reversed, purchase revoked."
	msgNoAction          = "OK, no action."
)

// Finalizer applies confirmed payment results to purchase requests
type Finalizer struct {
	store *Store
}

// NewFinalizer creates a finalizer writing to store
func NewFinalizer(store *Store) *Finalizer {
	return &Finalizer{store: store}
}

// CompleteTransaction updates the purchase request according to state.PaymentResult
// and records the matching log classification on the state.
func (f *Finalizer) CompleteTransaction(ctx context.Context, state *provider.CallbackState) error {
	if state.PurchaseRequest == nil {
		return errors.New("no purchase request attached to callback")
	}
	requestID := state.PurchaseRequest.ID

	switch state.PaymentResult {
	case provider.PaymentReceived:
		if err := f.store.SetFulfilled(ctx, requestID, true); err != nil {
			return fmt.Errorf("failed to fulfil purchase: %w", err)
		}
		state.PurchaseRequest.Fulfilled = true
		state.SetLog(provider.LogPayment, msgPaymentReceived)

	case provider.PaymentReinstated:
		if err := f.store.SetFulfilled(ctx, requestID, true); err != nil {
			return fmt.Errorf("failed to reactivate purchase: %w", err)
		}
		state.PurchaseRequest.Fulfilled = true
		state.SetLog(provider.LogPayment, msgPaymentReinstated)

	case provider.PaymentReversed:
		if err := f.store.SetFulfilled(ctx, requestID, false); err != nil {
			return fmt.Errorf("failed to revoke purchase: %w", err)
		}
		state.PurchaseRequest.Fulfilled = false
		state.SetLog(provider.LogCancel, msgPaymentReversed)

	default:
		state.SetLog(provider.LogInfo, msgNoAction)
	}

	return nil
}
