package provider

import (
	"context"
	"time"

	"github.com/mstgnz/idpay/infra/logger"
)

// RedirectLeaseTTL is how long redirect targets survive the round trip to a gateway
const RedirectLeaseTTL = 1200 * time.Second

// LeaseStore is a key-value store for short-lived, single-use values such as
// the redirect targets of a pending payment.
type LeaseStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Get reports ok=false when the key is missing or expired
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Invalidate(ctx context.Context, key string) error
}

// RedirectTargets are the pages a user returns to after leaving for a gateway
type RedirectTargets struct {
	ReturnURL string `json:"returnUrl"`
	CancelURL string `json:"cancelUrl"`
}

func returnKey(transactionID string) string { return transactionID + "1" }
func cancelKey(transactionID string) string { return transactionID + "2" }

// StoreRedirectTargets leases both targets under keys derived from the gateway
// transaction id.
func StoreRedirectTargets(ctx context.Context, leases LeaseStore, transactionID string, targets RedirectTargets) error {
	if err := leases.Put(ctx, returnKey(transactionID), targets.ReturnURL, RedirectLeaseTTL); err != nil {
		return err
	}
	return leases.Put(ctx, cancelKey(transactionID), targets.CancelURL, RedirectLeaseTTL)
}

// ConsumeRedirectTargets reads the leased targets for transactionID, substituting
// defaults for anything missing, and invalidates both leases.
func ConsumeRedirectTargets(ctx context.Context, leases LeaseStore, transactionID string, defaults RedirectTargets) RedirectTargets {
	targets := RedirectTargets{
		ReturnURL: leaseOrDefault(ctx, leases, returnKey(transactionID), defaults.ReturnURL),
		CancelURL: leaseOrDefault(ctx, leases, cancelKey(transactionID), defaults.CancelURL),
	}

	for _, key := range []string{returnKey(transactionID), cancelKey(transactionID)} {
		if err := leases.Invalidate(ctx, key); err != nil {
			logger.Warn("Failed to invalidate redirect lease", logger.LogContext{
				Fields: map[string]any{"key": key, "error": err.Error()},
			})
		}
	}

	return targets
}

func leaseOrDefault(ctx context.Context, leases LeaseStore, key, fallback string) string {
	value, ok, err := leases.Get(ctx, key)
	if err != nil {
		logger.Warn("Failed to read redirect lease", logger.LogContext{
			Fields: map[string]any{"key": key, "error": err.Error()},
		})
	}
	if !ok || value == "" {
		return fallback
	}
	return value
}
