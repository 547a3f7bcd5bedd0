package provider

import (
	"context"
	"net/http"
	"time"
)

// LogType classifies a payment log entry
type LogType string

const (
	LogInfo    LogType = "info"
	LogError   LogType = "error"
	LogPayment LogType = "payment"
	LogCancel  LogType = "cancel"
)

// PaymentResult is the outcome a provider assigns to a validated callback
type PaymentResult string

const (
	PaymentNone       PaymentResult = ""
	PaymentReceived   PaymentResult = "received"
	PaymentReinstated PaymentResult = "reinstated"
	PaymentReversed   PaymentResult = "reversed"
)

// ConfigField represents a configuration option understood by a payment provider
type ConfigField struct {
	Key         string `json:"key"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // "string", "boolean"
	Description string `json:"description"`
	Example     string `json:"example"`
	MinLength   int    `json:"minLength,omitempty"`
	MaxLength   int    `json:"maxLength,omitempty"`
}

// ConfigValidation is the result of checking a payment profile's options
type ConfigValidation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// PurchaseRequest is the host's record of a purchase awaiting payment
type PurchaseRequest struct {
	ID           int64     `json:"id"`
	RequestKey   string    `json:"requestKey"`
	UserID       int64     `json:"userId"`
	ProfileID    int64     `json:"profileId"`
	Purchasable  string    `json:"purchasable"`
	Title        string    `json:"title"`
	CostAmount   float64   `json:"costAmount"`
	CostCurrency string    `json:"costCurrency"`
	ReturnURL    string    `json:"returnUrl"`
	CancelURL    string    `json:"cancelUrl"`
	Fulfilled    bool      `json:"fulfilled"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PaymentProfile holds the gateway credentials configured by an administrator
type PaymentProfile struct {
	ID         int64             `json:"id"`
	ProviderID string            `json:"providerId"`
	Title      string            `json:"title"`
	Options    map[string]string `json:"options"`
	Active     bool              `json:"active"`
}

// Purchase describes what the user is paying for in a single checkout
type Purchase struct {
	Title     string
	Cost      float64
	Currency  string
	ReturnURL string
	CancelURL string
	Profile   PaymentProfile
}

// CallbackState is built fresh for every inbound gateway notification and lives
// only until the callback has been logged.
type CallbackState struct {
	ProviderID    string
	TransactionID string
	CostAmount    float64
	TaxAmount     float64
	CostCurrency  string
	PaymentStatus int
	RequestKey    string
	IP            string
	RawPayload    map[string]string

	// GatewayID keeps the transaction id as the gateway first reported it, since
	// TransactionID may be replaced by a settlement reference.
	GatewayID string

	LogType       LogType
	LogMessage    string
	LogDetails    map[string]string
	PaymentResult PaymentResult

	PurchaseRequest *PurchaseRequest
	PaymentProfile  *PaymentProfile
}

// SetLog records the classification of the callback
func (s *CallbackState) SetLog(logType LogType, message string) {
	s.LogType = logType
	s.LogMessage = message
}

// ResultKind tags a Result
type ResultKind int

const (
	KindRedirect ResultKind = iota + 1
	KindUserError
)

// Result is the terminal action a provider hands back to the request pipeline
type Result struct {
	Kind    ResultKind
	URL     string
	Message string
}

// Redirect sends the end user to url
func Redirect(url string) Result {
	return Result{Kind: KindRedirect, URL: url}
}

// UserError shows message to the end user instead of redirecting
func UserError(message string) Result {
	return Result{Kind: KindUserError, Message: message}
}

func (r Result) IsRedirect() bool {
	return r.Kind == KindRedirect
}

// PaymentProvider is the contract every payment gateway integration implements.
// The host calls SetupCallback, ValidateTransaction, ValidateCost, GetPaymentResult,
// PrepareLogData and CompleteTransaction in that order for each callback.
type PaymentProvider interface {
	// Title returns the human readable gateway name
	Title() string

	// VerifyConfig checks a payment profile's options before they are saved
	VerifyConfig(options map[string]string) ConfigValidation

	// InitiatePayment registers the payment with the gateway and redirects the user to it
	InitiatePayment(ctx context.Context, leases LeaseStore, request PurchaseRequest, purchase Purchase) Result

	// SupportsRecurring reports whether the gateway can bill on a schedule
	SupportsRecurring(profile PaymentProfile, unit string, amount int) bool

	// SetupCallback maps an inbound notification onto a CallbackState
	SetupCallback(r *http.Request) *CallbackState

	// ValidateTransaction decides whether the callback concerns a payment we should act on
	ValidateTransaction(ctx context.Context, state *CallbackState) bool

	// ValidateCost checks the paid amount against the purchase request
	ValidateCost(ctx context.Context, state *CallbackState) bool

	// GetPaymentResult assigns the payment outcome
	GetPaymentResult(state *CallbackState)

	// PrepareLogData fills the details stored with the payment log
	PrepareLogData(state *CallbackState)

	// CompleteTransaction confirms the payment and finalizes the purchase
	CompleteTransaction(ctx context.Context, leases LeaseStore, state *CallbackState) Result
}

// ProviderFactory creates a provider bound to the host's services
type ProviderFactory func(host *Host) PaymentProvider
