package idpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mstgnz/idpay/infra/config"
	"github.com/mstgnz/idpay/infra/logger"
	"github.com/mstgnz/idpay/infra/middle"
	"github.com/mstgnz/idpay/provider"
)

const (
	providerID = "idpay"

	// API URLs
	apiBaseURL = "https://api.idpay.ir"

	// API Endpoints
	endpointPayment = "/v1/payment"
	endpointInquiry = "/v1/payment/inquiry"

	// IDPay only settles in Rial
	currency = "IRR"

	// statusVerified is the inquiry and callback status of a settled payment
	statusVerified = 100

	// Profile option keys
	OptionAPIKey        = "idpay_api_key"
	OptionSandbox       = "idpay_sandbox"
	OptionFailedMessage = "idpay_failed_message"

	// Pages used when the redirect targets did not survive the trip to the gateway
	routeUpgradePurchase = "account/upgrade-purchase"
	routeUpgrades        = "account/upgrades"
)

const (
	msgUnsupportedCurrency = "The selected currency is not supported."
	msgCreateFailed        = "Error while creating transaction. Error code: %d"
	msgInquiryFailed       = "Error while checking transaction status. Error code: %d"
	msgAPIKeyRequired      = "You must provide an IDPay API key"

	msgNoRequestKey      = "No purchase request key. Unrelated payment, no action to take."
	msgInvalidRequestKey = "Invalid request key. Unrelated payment, no action to take."
	msgNoTransactionID   = "No transaction or subscriber ID. No action to take."
	msgAlreadyProcessed  = "Transaction already processed. Skipping."
	msgInvalidCost       = "Invalid cost amount"

	defaultFailedMessage = "Payment could not be verified. Track id: {track_id}, order id: {order_id}"
)

// Config holds the options of an IDPay payment profile
type Config struct {
	APIKey         string `validate:"required"`
	Sandbox        bool
	FailureMessage string
}

// ParseConfig reads a payment profile's options
func ParseConfig(options map[string]string) Config {
	sandbox := strings.TrimSpace(options[OptionSandbox])
	return Config{
		APIKey:         strings.TrimSpace(options[OptionAPIKey]),
		Sandbox:        sandbox == "1" || sandbox == "true",
		FailureMessage: options[OptionFailedMessage],
	}
}

// Validate checks that the configuration can be used against the gateway
func (c Config) Validate() error {
	if err := config.App().Validator.Struct(c); err != nil {
		return fmt.Errorf("idpay: invalid config: %w", err)
	}
	return nil
}

func (c Config) headers() map[string]string {
	sandbox := "false"
	if c.Sandbox {
		sandbox = "true"
	}
	return map[string]string{
		"X-API-KEY": c.APIKey,
		"X-SANDBOX": sandbox,
	}
}

// Provider implements provider.PaymentProvider for IDPay
type Provider struct {
	host       *provider.Host
	baseURL    string
	timeout    time.Duration
	httpClient *provider.ProviderHTTPClient
}

// Option customizes a Provider
type Option func(*Provider)

// WithBaseURL points the provider at another API host, e.g. a local stub
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithTimeout overrides the timeout of gateway calls
func WithTimeout(timeout time.Duration) Option {
	return func(p *Provider) {
		p.timeout = timeout
	}
}

// New creates an IDPay provider bound to the host's services
func New(host *provider.Host, opts ...Option) *Provider {
	p := &Provider{
		host:    host,
		baseURL: apiBaseURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.httpClient = provider.NewProviderHTTPClient(provider.CreateHTTPClientConfig(p.baseURL, p.timeout))
	return p
}

// NewProvider is the registry factory; IDPAY_API_URL overrides the API host
func NewProvider(host *provider.Host) provider.PaymentProvider {
	return New(host, WithBaseURL(config.GetEnv("IDPAY_API_URL", apiBaseURL)))
}

// Title returns the gateway name
func (p *Provider) Title() string {
	return "IDPay"
}

// GetRequiredConfig returns the options an IDPay payment profile understands
func (p *Provider) GetRequiredConfig() []provider.ConfigField {
	return []provider.ConfigField{
		{
			Key:         OptionAPIKey,
			Required:    true,
			Type:        "string",
			Description: "IDPay API key (from the IDPay web service settings)",
			Example:     "6a7f99eb-7c20-4412-a972-6dfb7cd253a4",
			MaxLength:   100,
		},
		{
			Key:         OptionSandbox,
			Required:    false,
			Type:        "boolean",
			Description: "Send payments to the IDPay sandbox",
			Example:     "1",
		},
		{
			Key:         OptionFailedMessage,
			Required:    false,
			Type:        "string",
			Description: "Message logged when a payment cannot be verified; {track_id} and {order_id} are replaced",
			Example:     "Payment failed. Track id: {track_id}",
			MaxLength:   500,
		},
	}
}

// VerifyConfig checks the options of a payment profile before it is saved
func (p *Provider) VerifyConfig(options map[string]string) provider.ConfigValidation {
	// the API key is checked by Config.Validate
	validation := provider.ValidateConfigFields(providerID, options, p.GetRequiredConfig()[1:])
	if err := ParseConfig(options).Validate(); err != nil {
		validation.Valid = false
		validation.Errors = append([]string{msgAPIKeyRequired}, validation.Errors...)
	}
	return validation
}

// SupportsRecurring is always false, IDPay has no subscription billing
func (p *Provider) SupportsRecurring(profile provider.PaymentProfile, unit string, amount int) bool {
	return false
}

// InitiatePayment creates the payment at IDPay and redirects the user to its payment page
func (p *Provider) InitiatePayment(ctx context.Context, leases provider.LeaseStore, request provider.PurchaseRequest, purchase provider.Purchase) provider.Result {
	cfg := ParseConfig(purchase.Profile.Options)

	amount := int64(purchase.Cost)
	if amount <= 0 {
		return provider.UserError(msgUnsupportedCurrency)
	}

	desc := purchase.Title
	if desc == "" {
		desc = "Invoice#" + request.RequestKey
	}

	payload := paymentRequest{
		OrderID:  request.RequestKey,
		Amount:   amount,
		Phone:    "",
		Desc:     desc,
		Callback: p.host.Links.CallbackURL(providerID),
	}

	resp, status := p.post(ctx, cfg, endpointPayment, payload)

	var created paymentResponse
	if status != http.StatusCreated || !decode(resp, &created) || created.ID == "" || created.Link == "" {
		logger.Warn("IDPay payment creation failed", logger.LogContext{
			Provider: providerID,
			Fields: map[string]any{
				"request_key": request.RequestKey,
				"http_status": status,
			},
		})
		return provider.UserError(fmt.Sprintf(msgCreateFailed, status))
	}

	targets := provider.RedirectTargets{ReturnURL: purchase.ReturnURL, CancelURL: purchase.CancelURL}
	if err := provider.StoreRedirectTargets(ctx, leases, created.ID, targets); err != nil {
		logger.Error("Failed to store redirect targets", err, logger.LogContext{
			Provider: providerID,
			Fields:   map[string]any{"transaction_id": created.ID},
		})
	}

	return provider.Redirect(created.Link)
}

// SetupCallback maps the parameters IDPay sends back onto a callback state
func (p *Provider) SetupCallback(r *http.Request) *provider.CallbackState {
	payload := make(map[string]string)
	if err := r.ParseForm(); err == nil {
		for key, values := range r.Form {
			if len(values) > 0 {
				payload[key] = values[0]
			}
		}
	}

	return &provider.CallbackState{
		TransactionID: strings.TrimSpace(payload["id"]),
		CostAmount:    unsignedNumber(payload["amount"]),
		TaxAmount:     0,
		CostCurrency:  currency,
		PaymentStatus: int(unsignedNumber(payload["status"])),
		RequestKey:    strings.TrimSpace(payload["order_id"]),
		IP:            middle.GetClientIP(r),
		RawPayload:    payload,
	}
}

// ValidateTransaction filters out callbacks that are unrelated or already handled
func (p *Provider) ValidateTransaction(ctx context.Context, state *provider.CallbackState) bool {
	if state.RequestKey == "" {
		state.SetLog(provider.LogInfo, msgNoRequestKey)
		return false
	}

	request, err := p.host.ResolvePurchaseRequest(ctx, state)
	if err != nil {
		state.SetLog(provider.LogError, "Unable to load purchase request: "+err.Error())
		return false
	}
	if request == nil {
		state.SetLog(provider.LogInfo, msgInvalidRequestKey)
		return false
	}

	if state.TransactionID == "" {
		state.SetLog(provider.LogInfo, msgNoTransactionID)
		return false
	}

	count, err := p.host.Logs.CountLogsByTransactionID(ctx, state.TransactionID, provider.LogPayment, provider.LogCancel)
	if err != nil {
		state.SetLog(provider.LogError, "Unable to look up payment logs: "+err.Error())
		return false
	}
	if count > 0 {
		state.SetLog(provider.LogInfo, msgAlreadyProcessed)
		return false
	}

	return true
}

// ValidateCost compares the paid amount and currency with the purchase request
func (p *Provider) ValidateCost(ctx context.Context, state *provider.CallbackState) bool {
	request, err := p.host.ResolvePurchaseRequest(ctx, state)
	if err != nil || request == nil {
		state.SetLog(provider.LogError, msgInvalidCost)
		return false
	}

	costValidated := round2(state.CostAmount-state.TaxAmount) == round2(request.CostAmount) &&
		state.CostCurrency == request.CostCurrency
	if !costValidated {
		state.SetLog(provider.LogError, msgInvalidCost)
		return false
	}

	return true
}

// GetPaymentResult maps the callback status; only 100 means the money arrived
func (p *Provider) GetPaymentResult(state *provider.CallbackState) {
	if state.PaymentStatus == statusVerified {
		state.PaymentResult = provider.PaymentReceived
	} else {
		state.PaymentResult = provider.PaymentReinstated
	}
}

// PrepareLogData stores the raw callback parameters with the log entry
func (p *Provider) PrepareLogData(state *provider.CallbackState) {
	state.LogDetails = state.RawPayload
}

// CompleteTransaction confirms the payment with an inquiry call before the purchase
// is finalized, since the callback itself can be forged.
func (p *Provider) CompleteTransaction(ctx context.Context, leases provider.LeaseStore, state *provider.CallbackState) provider.Result {
	targets := provider.ConsumeRedirectTargets(ctx, leases, state.TransactionID, provider.RedirectTargets{
		ReturnURL: p.host.Links.SiteLink(routeUpgradePurchase),
		CancelURL: p.host.Links.SiteLink(routeUpgrades),
	})

	cfg := p.profileConfig(state)

	inquiry, status, err := p.Inquire(ctx, cfg, state.TransactionID, state.RequestKey)
	if status != http.StatusOK {
		logger.Warn("IDPay inquiry failed", logger.LogContext{
			Provider: providerID,
			Fields: map[string]any{
				"transaction_id": state.TransactionID,
				"http_status":    status,
				"error":          errString(err),
			},
		})
		state.SetLog(provider.LogError, inquiryFailedMessage(cfg.FailureMessage, status))
		return provider.Redirect(targets.CancelURL)
	}

	if !p.settled(inquiry, state) {
		state.SetLog(provider.LogError, failedMessage(cfg.FailureMessage, inquiry.TrackID.String(), inquiry.OrderID.String()))
		return provider.Redirect(targets.CancelURL)
	}

	state.TransactionID = inquiry.TrackID.String()
	if err := p.host.Finalizer.CompleteTransaction(ctx, state); err != nil {
		state.SetLog(provider.LogError, "Failed to complete purchase: "+err.Error())
		return provider.Redirect(targets.CancelURL)
	}

	return provider.Redirect(targets.ReturnURL)
}

// Inquire asks IDPay for the authoritative state of a payment. The HTTP status is
// returned even when err is set; it is 0 when the gateway could not be reached.
func (p *Provider) Inquire(ctx context.Context, cfg Config, id, orderID string) (*InquiryResponse, int, error) {
	resp, status := p.post(ctx, cfg, endpointInquiry, inquiryRequest{ID: id, OrderID: orderID})
	if status != http.StatusOK {
		return nil, status, fmt.Errorf("idpay: inquiry returned HTTP %d", status)
	}

	var inquiry InquiryResponse
	if !decode(resp, &inquiry) {
		return &InquiryResponse{}, status, errors.New("idpay: malformed inquiry response")
	}

	return &inquiry, status, nil
}

// settled reports whether the inquiry proves the payment of the requested amount
func (p *Provider) settled(inquiry *InquiryResponse, state *provider.CallbackState) bool {
	if inquiry.Status.String() != strconv.Itoa(statusVerified) {
		return false
	}
	if inquiry.TrackID.String() == "" || inquiry.Amount.String() == "" {
		return false
	}
	if state.PurchaseRequest == nil {
		return false
	}

	amount, err := strconv.ParseFloat(inquiry.Amount.String(), 64)
	if err != nil {
		return false
	}

	return int64(amount) == requestedAmount(state.PurchaseRequest.CostAmount)
}

func (p *Provider) profileConfig(state *provider.CallbackState) Config {
	if state.PaymentProfile == nil {
		return Config{}
	}
	return ParseConfig(state.PaymentProfile.Options)
}

// post sends a JSON request and returns the response with its status, or a nil
// response and status 0 when the gateway could not be reached.
func (p *Provider) post(ctx context.Context, cfg Config, endpoint string, body any) (*provider.HTTPResponse, int) {
	resp, err := p.httpClient.SendJSON(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: endpoint,
		Headers:  cfg.headers(),
		Body:     body,
	})
	if resp == nil {
		logger.Error("IDPay request failed", err, logger.LogContext{
			Provider: providerID,
			Fields:   map[string]any{"endpoint": endpoint},
		})
		return nil, 0
	}
	return resp, resp.StatusCode
}

func decode(resp *provider.HTTPResponse, target any) bool {
	if resp == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return false
	}
	return json.Unmarshal(resp.Body, target) == nil
}

// requestedAmount is the amount sent to IDPay for a cost, in whole Rials
func requestedAmount(cost float64) int64 {
	return int64(cost)
}

func failedMessage(template, trackID, orderID string) string {
	if template == "" {
		template = defaultFailedMessage
	}
	return strings.NewReplacer("{track_id}", trackID, "{order_id}", orderID).Replace(template)
}

// inquiryFailedMessage renders the failure template for an inquiry that never
// returned a body, with the gateway's HTTP status appended.
func inquiryFailedMessage(template string, status int) string {
	return fmt.Sprintf("%s ("+msgInquiryFailed+")", failedMessage(template, "", ""), status)
}

// unsignedNumber parses a request parameter as a non-negative number; anything
// else becomes 0.
func unsignedNumber(value string) float64 {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return n
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// paymentRequest is the body of POST /v1/payment
type paymentRequest struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Phone    string `json:"phone"`
	Desc     string `json:"desc"`
	Callback string `json:"callback"`
}

// paymentResponse is the body IDPay answers a created payment with
type paymentResponse struct {
	ID   string `json:"id"`
	Link string `json:"link"`
}

// inquiryRequest is the body of POST /v1/payment/inquiry
type inquiryRequest struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
}

// InquiryResponse is the part of IDPay's inquiry answer the settlement check uses
type InquiryResponse struct {
	Status  Scalar `json:"status"`
	TrackID Scalar `json:"track_id"`
	ID      Scalar `json:"id"`
	OrderID Scalar `json:"order_id"`
	Amount  Scalar `json:"amount"`
}

// Scalar accepts a JSON string or number; IDPay returns both for the same fields
type Scalar string

func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = Scalar(num.String())
	return nil
}

func (s Scalar) String() string {
	return string(s)
}
