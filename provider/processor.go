package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/mstgnz/idpay/infra/logger"
)

// PaymentLog is the stored record of one processed callback
type PaymentLog struct {
	ID                int64             `json:"id"`
	ProviderID        string            `json:"providerId"`
	TransactionID     string            `json:"transactionId"`
	GatewayID         string            `json:"gatewayId"`
	RequestKey        string            `json:"requestKey"`
	PurchaseRequestID int64             `json:"purchaseRequestId,omitempty"`
	LogType           LogType           `json:"logType"`
	LogMessage        string            `json:"logMessage"`
	LogDetails        map[string]string `json:"logDetails,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
}

// PaymentLogWriter persists payment logs
type PaymentLogWriter interface {
	InsertPaymentLog(ctx context.Context, entry *PaymentLog) error
}

// LogMirror receives a copy of every stored payment log
type LogMirror interface {
	MirrorPaymentLog(ctx context.Context, entry PaymentLog) error
}

// LogMirrorFunc adapts a function to LogMirror
type LogMirrorFunc func(ctx context.Context, entry PaymentLog) error

func (f LogMirrorFunc) MirrorPaymentLog(ctx context.Context, entry PaymentLog) error {
	return f(ctx, entry)
}

// CallbackOutcome is what the host does after a callback has been processed
type CallbackOutcome struct {
	State *CallbackState
	// Result is nil when processing stopped without anything to show the user
	Result *Result
	Log    PaymentLog
}

// CallbackProcessor drives a provider through the callback sequence and logs the outcome
type CallbackProcessor struct {
	logs    PaymentLogWriter
	mirrors []LogMirror
}

// NewCallbackProcessor creates a processor that writes logs to logs and copies them to mirrors
func NewCallbackProcessor(logs PaymentLogWriter, mirrors ...LogMirror) *CallbackProcessor {
	return &CallbackProcessor{
		logs:    logs,
		mirrors: mirrors,
	}
}

// Process handles one inbound callback. It never fails: every outcome, including
// skipped and rejected callbacks, ends up as a single payment log entry.
func (p *CallbackProcessor) Process(ctx context.Context, providerID string, prov PaymentProvider, r *http.Request, leases LeaseStore) *CallbackOutcome {
	state := prov.SetupCallback(r)
	state.ProviderID = providerID
	if state.GatewayID == "" {
		state.GatewayID = state.TransactionID
	}

	outcome := &CallbackOutcome{State: state}

	if prov.ValidateTransaction(ctx, state) && prov.ValidateCost(ctx, state) {
		prov.GetPaymentResult(state)
		prov.PrepareLogData(state)
		result := prov.CompleteTransaction(ctx, leases, state)
		outcome.Result = &result
	} else {
		prov.PrepareLogData(state)
		if state.LogType == "" {
			state.SetLog(LogError, "Callback failed validation")
		}
	}

	if state.LogType == "" {
		state.SetLog(LogInfo, "Callback processed")
	}

	outcome.Log = p.log(ctx, state)
	return outcome
}

func (p *CallbackProcessor) log(ctx context.Context, state *CallbackState) PaymentLog {
	entry := PaymentLog{
		ProviderID:    state.ProviderID,
		TransactionID: state.TransactionID,
		GatewayID:     state.GatewayID,
		RequestKey:    state.RequestKey,
		LogType:       state.LogType,
		LogMessage:    state.LogMessage,
		LogDetails:    state.LogDetails,
		CreatedAt:     time.Now().UTC(),
	}
	if state.PurchaseRequest != nil {
		entry.PurchaseRequestID = state.PurchaseRequest.ID
	}

	logCtx := logger.LogContext{
		Provider: state.ProviderID,
		Fields: map[string]any{
			"transaction_id": state.TransactionID,
			"request_key":    state.RequestKey,
			"log_type":       string(state.LogType),
		},
	}
	switch state.LogType {
	case LogError:
		logger.Warn(state.LogMessage, logCtx)
	default:
		logger.Info(state.LogMessage, logCtx)
	}

	if p.logs != nil {
		if err := p.logs.InsertPaymentLog(ctx, &entry); err != nil {
			logger.Error("Failed to store payment log", err, logCtx)
		}
	}

	for _, mirror := range p.mirrors {
		if err := mirror.MirrorPaymentLog(ctx, entry); err != nil {
			logger.Warn("Failed to mirror payment log", logger.LogContext{
				Provider: state.ProviderID,
				Fields:   map[string]any{"error": err.Error()},
			})
		}
	}

	return entry
}
