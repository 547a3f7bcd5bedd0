package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// PurchaseRequestFinder looks up purchase requests. A missing request is (nil, nil).
type PurchaseRequestFinder interface {
	FindPurchaseRequest(ctx context.Context, requestKey string) (*PurchaseRequest, error)
}

// ProfileFinder loads payment profiles. A missing profile is (nil, nil).
type ProfileFinder interface {
	GetProfile(ctx context.Context, id int64) (*PaymentProfile, error)
}

// PaymentLogFinder counts stored log entries for a gateway transaction id
type PaymentLogFinder interface {
	CountLogsByTransactionID(ctx context.Context, transactionID string, types ...LogType) (int, error)
}

// TransactionFinalizer applies a confirmed payment result to the purchase
type TransactionFinalizer interface {
	CompleteTransaction(ctx context.Context, state *CallbackState) error
}

// LinkBuilder builds public URLs. BuildLink and CallbackURL point at this
// service, SiteLink at the site users shop on.
type LinkBuilder interface {
	BuildLink(route string) string
	SiteLink(route string) string
	CallbackURL(providerID string) string
}

// Host bundles the services the surrounding purchase system offers to providers
type Host struct {
	Purchases PurchaseRequestFinder
	Profiles  ProfileFinder
	Logs      PaymentLogFinder
	Finalizer TransactionFinalizer
	Links     LinkBuilder
}

var ErrProfileNotFound = errors.New("payment profile not found")

// ResolvePurchaseRequest loads the purchase request named by state.RequestKey together
// with its payment profile and caches both on the state. It returns (nil, nil) when no
// purchase request matches.
func (h *Host) ResolvePurchaseRequest(ctx context.Context, state *CallbackState) (*PurchaseRequest, error) {
	if state.PurchaseRequest != nil {
		return state.PurchaseRequest, nil
	}

	request, err := h.Purchases.FindPurchaseRequest(ctx, state.RequestKey)
	if err != nil {
		return nil, fmt.Errorf("failed to find purchase request: %w", err)
	}
	if request == nil {
		return nil, nil
	}

	if h.Profiles != nil {
		profile, err := h.Profiles.GetProfile(ctx, request.ProfileID)
		if err != nil {
			return nil, fmt.Errorf("failed to load payment profile: %w", err)
		}
		if profile == nil {
			return nil, ErrProfileNotFound
		}
		state.PaymentProfile = profile
	}

	state.PurchaseRequest = request
	return request, nil
}

// StaticLinks builds links relative to fixed public base URLs. An empty SiteURL
// means the site is served from BaseURL.
type StaticLinks struct {
	BaseURL string
	SiteURL string
}

// BuildLink returns the URL of a route served by this service
func (l StaticLinks) BuildLink(route string) string {
	return joinURL(l.BaseURL, route)
}

// SiteLink returns the canonical URL of a site page such as "account/upgrades"
func (l StaticLinks) SiteLink(route string) string {
	if l.SiteURL == "" {
		return joinURL(l.BaseURL, route)
	}
	return joinURL(l.SiteURL, route)
}

// CallbackURL returns the URL gateways notify for the given provider
func (l StaticLinks) CallbackURL(providerID string) string {
	return joinURL(l.BaseURL, "/v1/callback/"+providerID)
}

func joinURL(base, endpoint string) string {
	if strings.HasSuffix(base, "/") && strings.HasPrefix(endpoint, "/") {
		return base + endpoint[1:]
	}
	if !strings.HasSuffix(base, "/") && !strings.HasPrefix(endpoint, "/") {
		return base + "/" + endpoint
	}
	return base + endpoint
}
