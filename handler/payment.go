package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/idpay/infra/logger"
	"github.com/mstgnz/idpay/infra/response"
	"github.com/mstgnz/idpay/infra/session"
	"github.com/mstgnz/idpay/provider"
)

// PurchaseStore persists purchase requests
type PurchaseStore interface {
	CreatePurchaseRequest(ctx context.Context, request *provider.PurchaseRequest) error
	FindPurchaseRequest(ctx context.Context, requestKey string) (*provider.PurchaseRequest, error)
}

// PaymentHandler handles checkout and gateway callback requests
type PaymentHandler struct {
	purchases PurchaseStore
	profiles  ProfileStore
	registry  *provider.ProviderRegistry
	host      *provider.Host
	sessions  session.Backend
	processor *provider.CallbackProcessor
	validate  *validator.Validate
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(
	purchases PurchaseStore,
	profiles ProfileStore,
	registry *provider.ProviderRegistry,
	host *provider.Host,
	sessions session.Backend,
	processor *provider.CallbackProcessor,
	validate *validator.Validate,
) *PaymentHandler {
	return &PaymentHandler{
		purchases: purchases,
		profiles:  profiles,
		registry:  registry,
		host:      host,
		sessions:  sessions,
		processor: processor,
		validate:  validate,
	}
}

// CreatePurchaseRequest is the body of POST /v1/purchases
type CreatePurchaseRequest struct {
	ProfileID   int64   `json:"profileId" validate:"required,gt=0"`
	UserID      int64   `json:"userId" validate:"gte=0"`
	Purchasable string  `json:"purchasable" validate:"max=255"`
	Title       string  `json:"title" validate:"max=255"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Currency    string  `json:"currency" validate:"required,len=3,uppercase"`
	ReturnURL   string  `json:"returnUrl" validate:"required,httpurl"`
	CancelURL   string  `json:"cancelUrl" validate:"required,httpurl"`
}

// PurchaseCreated is returned for a new purchase request
type PurchaseCreated struct {
	*provider.PurchaseRequest
	PayURL string `json:"payUrl"`
}

// CreatePurchase stores a purchase request awaiting payment
func (h *PaymentHandler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req CreatePurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	profile, err := h.profiles.GetProfile(ctx, req.ProfileID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to load payment profile", err)
		return
	}
	if profile == nil {
		response.Error(w, http.StatusNotFound, "Payment profile not found", nil)
		return
	}

	purchase := &provider.PurchaseRequest{
		UserID:       req.UserID,
		ProfileID:    profile.ID,
		Purchasable:  req.Purchasable,
		Title:        req.Title,
		CostAmount:   req.Amount,
		CostCurrency: req.Currency,
		ReturnURL:    req.ReturnURL,
		CancelURL:    req.CancelURL,
	}
	if err := h.purchases.CreatePurchaseRequest(ctx, purchase); err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to create purchase request", err)
		return
	}

	logger.Info("Purchase request created", logger.LogContext{
		Provider:  profile.ProviderID,
		RequestID: middleware.GetReqID(r.Context()),
		Fields: map[string]any{
			"request_key": purchase.RequestKey,
			"amount":      purchase.CostAmount,
			"currency":    purchase.CostCurrency,
		},
	})

	response.Success(w, http.StatusCreated, "Purchase request created", PurchaseCreated{
		PurchaseRequest: purchase,
		PayURL:          h.host.Links.BuildLink("/v1/purchases/" + purchase.RequestKey + "/pay"),
	})
}

// Pay hands the user over to the gateway of the purchase request's payment profile
func (h *PaymentHandler) Pay(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	requestKey := chi.URLParam(r, "requestKey")

	request, err := h.purchases.FindPurchaseRequest(ctx, requestKey)
	if err != nil {
		logger.Error("Failed to load purchase request", err, logger.LogContext{
			RequestID: middleware.GetReqID(r.Context()),
			Fields:    map[string]any{"request_key": requestKey},
		})
		response.Text(w, http.StatusInternalServerError, "Payment is temporarily unavailable.")
		return
	}
	if request == nil {
		response.Text(w, http.StatusNotFound, "Purchase request not found.")
		return
	}
	if request.Fulfilled {
		response.Text(w, http.StatusConflict, "This purchase has already been paid.")
		return
	}

	profile, err := h.profiles.GetProfile(ctx, request.ProfileID)
	if err != nil || profile == nil || !profile.Active {
		response.Text(w, http.StatusBadRequest, "The payment method is not available.")
		return
	}

	prov, err := h.registry.CreateProvider(profile.ProviderID, h.host)
	if err != nil {
		response.Text(w, http.StatusBadRequest, "The payment method is not available.")
		return
	}

	leases := session.RequestLeases(h.sessions, w, r)
	result := prov.InitiatePayment(ctx, leases, *request, provider.Purchase{
		Title:     request.Title,
		Cost:      request.CostAmount,
		Currency:  request.CostCurrency,
		ReturnURL: request.ReturnURL,
		CancelURL: request.CancelURL,
		Profile:   *profile,
	})

	if !result.IsRedirect() {
		response.Text(w, http.StatusBadRequest, result.Message)
		return
	}

	http.Redirect(w, r, result.URL, http.StatusFound)
}

// HandleCallback processes a gateway notification and sends the user on
func (h *PaymentHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	providerID := chi.URLParam(r, "provider")
	prov, err := h.registry.CreateProvider(providerID, h.host)
	if err != nil {
		response.Error(w, http.StatusNotFound, "Unknown payment provider", err)
		return
	}

	leases := session.RequestLeases(h.sessions, w, r)
	outcome := h.processor.Process(ctx, providerID, prov, r, leases)

	if outcome.Result == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	if !outcome.Result.IsRedirect() {
		response.Text(w, http.StatusBadRequest, outcome.Result.Message)
		return
	}

	writeScriptRedirect(w, outcome.Result.URL)
}

// writeScriptRedirect sets the Location header and repeats the redirect in a
// script for clients that render the body.
func writeScriptRedirect(w http.ResponseWriter, url string) {
	w.Header().Set("Location", url)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusFound)
	fmt.Fprintf(w, `<script>document.location="%s";</script>`, template.JSEscapeString(strings.TrimSpace(url)))
}
